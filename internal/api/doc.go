// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the HTTP client for the Ligant backend service:
// the streaming chat endpoint, per-job progress streams, conversation
// history, design job management, and structure artifact content.
//
// # Key Types
//
//   - Client: authenticated HTTP client for all backend endpoints
//   - HistoryItem: one persisted message from the history endpoint
//   - DesignJobRequest / DesignJobResponse: job launch contract
//
// # Usage
//
//	client := api.NewClient(cfg.ServerURL, cfg.APIToken)
//	err := client.SendMessage(ctx, "design a binder", "", func(f sse.Frame) {
//	    // handle decoded frames in arrival order
//	})
//
// # Auth
//
// Every request carries a bearer credential except the per-job progress
// stream, which authenticates through a query parameter because that
// channel type cannot set custom headers. A 401 from any endpoint fires
// the client's session-expired callback; in-flight streams simply stop
// receiving frames.
package api
