// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package jobs tracks in-flight structure generation jobs and monitors each
// one over its own push-event channel.
//
// # Key Types
//
//   - Monitor: one per observed job; reconnects with exponential backoff
//     and reports progress and terminal state through callbacks
//   - Tracker: the set of pending jobs awaiting reconciliation into chat
//     state, with change subscriptions
//
// Monitors are fully independent: there is no shared connection limit and
// no ordering guarantee across jobs or relative to the chat stream.
package jobs
