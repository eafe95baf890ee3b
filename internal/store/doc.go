// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists visualization records and the conversation list
// cache in a local SQLite database.
//
// The store is strictly an offline convenience: the backend remains the
// source of truth, and every caller treats store failures as non-fatal.
// Visualization records let the client remember which completed job was
// reconciled into which message across restarts; the conversation cache
// lets the conversation picker render while the backend is unreachable.
package store
