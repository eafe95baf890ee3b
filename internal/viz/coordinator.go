// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package viz

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ligant-ai/ligant-client/internal/jobs"
	"github.com/ligant-ai/ligant-client/internal/model"
)

// fetchTimeout bounds the artifact fetches for one completed job.
const fetchTimeout = 60 * time.Second

// Fetcher fetches artifact contents by id, omitting failures.
type Fetcher interface {
	FetchArtifacts(ctx context.Context, artifactIDs []string) map[string]string
}

// SessionSink is the subset of the chat session the coordinator writes to.
// Both injections are gated by the session itself and report whether the
// content was accepted.
type SessionSink interface {
	InjectVisualization(conversationID, jobID, text string, viz model.VisualizationPayload) (string, bool)
	InjectNotice(conversationID, text string) bool
}

// Recorder persists which job produced which injected message, and answers
// whether a job was already handled in a previous run. Persistence failure
// never retracts an already-displayed message.
type Recorder interface {
	SaveVisualizationRecord(jobID, conversationID, messageID string, artifactIDs []string) error
	VisualizationRecordExists(jobID string) (bool, error)
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator keeps job monitors in lockstep with the pending-job set and
// fans completed jobs out into new conversation content.
type Coordinator struct {
	tracker  *jobs.Tracker
	streamer jobs.Streamer
	fetcher  Fetcher
	session  SessionSink
	recorder Recorder

	mu          sync.Mutex
	monitors    map[string]*jobs.Monitor
	unsubscribe func()
	closed      bool
}

// NewCoordinator creates a coordinator. Call Start to begin observing.
func NewCoordinator(tracker *jobs.Tracker, streamer jobs.Streamer, fetcher Fetcher, session SessionSink) *Coordinator {
	return &Coordinator{
		tracker:  tracker,
		streamer: streamer,
		fetcher:  fetcher,
		session:  session,
		monitors: make(map[string]*jobs.Monitor),
	}
}

// WithRecorder enables persistence of job-to-message provenance records.
func (c *Coordinator) WithRecorder(recorder Recorder) *Coordinator {
	c.recorder = recorder
	return c
}

// Start subscribes to pending-job changes and opens monitors for the jobs
// already tracked.
func (c *Coordinator) Start() {
	c.unsubscribe = c.tracker.Subscribe(c.sync)
	c.sync()
}

// Close stops every open monitor unconditionally and detaches from the
// tracker. Safe to call more than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	for id, mon := range c.monitors {
		mon.Stop()
		delete(c.monitors, id)
	}
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Observed reports whether a job currently has an open monitor.
func (c *Coordinator) Observed(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.monitors[jobID]
	return ok
}

// sync reconciles open monitors with the tracked set: it opens one monitor
// per newly tracked job (never a second one for a job already observed)
// and immediately closes the channel of any job no longer tracked, even if
// not yet terminal.
func (c *Coordinator) sync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	tracked := make(map[string]model.PendingJob)
	for _, job := range c.tracker.Jobs() {
		tracked[job.JobID] = job
	}

	for id, mon := range c.monitors {
		if _, ok := tracked[id]; !ok {
			mon.Stop()
			delete(c.monitors, id)
		}
	}

	for id, job := range tracked {
		if _, ok := c.monitors[id]; ok {
			continue
		}
		job := job
		mon := jobs.NewMonitor(id, c.streamer).
			OnTerminal(func(state model.JobState) {
				c.handleTerminal(job, state)
			})
		c.monitors[id] = mon
		mon.Start()
	}
}

// =============================================================================
// TERMINAL HANDLING
// =============================================================================

// handleTerminal runs on the monitor goroutine when a job reaches a
// terminal state.
func (c *Coordinator) handleTerminal(job model.PendingJob, state model.JobState) {
	switch state.Status {
	case model.JobStatusCompleted:
		c.handleCompleted(job, state)
	case model.JobStatusFailed:
		c.handleFailed(job, state)
	}
}

// handleCompleted fetches the job's output artifacts and injects a
// visualization message. A job whose artifact fetches all fail is treated
// as having no artifacts; either way it is cleared from the pending set.
func (c *Coordinator) handleCompleted(job model.PendingJob, state model.JobState) {
	defer c.tracker.Remove(job.JobID)

	if len(state.OutputArtifacts) == 0 {
		return
	}

	// A record means a previous run already injected this job's results;
	// re-injecting would duplicate the message after a restart.
	if c.recorder != nil {
		if exists, err := c.recorder.VisualizationRecordExists(job.JobID); err == nil && exists {
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	contents := c.fetcher.FetchArtifacts(ctx, state.OutputArtifacts)
	if len(contents) == 0 {
		return
	}

	text := fmt.Sprintf("Structure generation complete: %d of %d designs ready.",
		len(contents), len(state.OutputArtifacts))
	messageID, ok := c.session.InjectVisualization(
		job.ConversationID, job.JobID, text, model.DefaultVisualization(contents))
	if !ok {
		return
	}

	if c.recorder != nil {
		if err := c.recorder.SaveVisualizationRecord(job.JobID, job.ConversationID, messageID, state.OutputArtifacts); err != nil {
			// The message is already displayed; the record is best-effort.
			log.Printf("visualization record for job %s not saved: %v", job.JobID, err)
		}
	}
}

// handleFailed clears the job and emits a recovery notice. The session
// gates the notice to the owning conversation while it is active and idle.
func (c *Coordinator) handleFailed(job model.PendingJob, state model.JobState) {
	defer c.tracker.Remove(job.JobID)

	message := state.Message
	if message == "" {
		message = "structure generation failed"
	}
	c.session.InjectNotice(job.ConversationID, "Design job failed: "+message)
}
