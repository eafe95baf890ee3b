// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// JOB STATUS
// =============================================================================

// JobStatus represents the last-known lifecycle state of a design job.
type JobStatus string

const (
	JobStatusUnknown   JobStatus = "unknown"
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// String returns the string representation of the job status.
func (s JobStatus) String() string {
	return string(s)
}

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// =============================================================================
// JOB STATE
// =============================================================================

// ProgressUnknown marks a job whose progress has not been reported yet.
const ProgressUnknown = -1.0

// JobState is the ephemeral, last-known state of one monitored job.
// It is never persisted; each progress frame replaces it wholesale.
type JobState struct {
	// JobID identifies the job.
	JobID string

	// Progress is in [0,1], or ProgressUnknown.
	Progress float64

	// Status is the lifecycle state.
	Status JobStatus

	// Message is the human-readable status line from the server.
	Message string

	// OutputArtifacts lists result artifact ids, set on completion.
	OutputArtifacts []string
}

// NewJobState returns the initial state for a job under observation.
func NewJobState(jobID string) JobState {
	return JobState{
		JobID:    jobID,
		Progress: ProgressUnknown,
		Status:   JobStatusUnknown,
	}
}

// =============================================================================
// PENDING JOB
// =============================================================================

// PendingJob is a background design job whose completion has not yet been
// reconciled into chat state.
type PendingJob struct {
	// JobID identifies the job on the server.
	JobID string

	// ConversationID is the conversation the job was launched from.
	ConversationID string

	// CreatedAt is when the client learned about the job.
	CreatedAt time.Time
}

// =============================================================================
// CONVERSATION
// =============================================================================

// Conversation is one entry in the conversation list.
type Conversation struct {
	ID           string `json:"conversation_id"`
	Title        string `json:"title,omitempty"`
	Preview      string `json:"preview,omitempty"`
	LastActivity string `json:"last_activity,omitempty"`
}
