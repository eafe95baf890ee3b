// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat owns the active conversation: its message list, the
// streaming state machine that assembles an assistant message from
// interleaved push events, conversation selection with progressive history
// hydration, and recovery of interactive option sets from message text.
//
// # State machine
//
// A session is Idle or Streaming. SendMessage appends an optimistic user
// message and an empty assistant placeholder, opens the send stream, and
// applies frames in arrival order; it always returns the session to Idle,
// whether streaming completed or failed. Partial progress is preserved on
// failure, never rolled back.
//
// All mutation happens under the session mutex; change and error callbacks
// run outside it.
package chat
