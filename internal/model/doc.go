// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared across the Ligant client:
// chat messages, tool call records, structure visualizations, conversations,
// and background design jobs.
//
// # Key Types
//
//   - Message: a single chat message with tool calls and visualizations
//   - ToolCallRecord: one agent tool invocation and its eventual result
//   - VisualizationPayload: structure text keyed by artifact id, plus display tags
//   - Conversation: a conversation list entry
//   - PendingJob: a background design job awaiting reconciliation into chat state
//   - JobState: the last-known status of a monitored job
//
// Messages are owned by the chat session and mutated only by its frame
// handlers; job state is owned by the monitor that produced it.
package model
