// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package viz reconciles completed structure generation jobs back into
// conversation state.
//
// The Coordinator subscribes to the pending-job tracker, keeps exactly one
// progress monitor per tracked job, and on completion fetches the output
// structures and injects a visualization message into the owning
// conversation. Failed jobs produce a notice instead; either way the job
// leaves the tracker once handled.
package viz
