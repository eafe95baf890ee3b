// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/ligant-ai/ligant-client/internal/model"
	"github.com/ligant-ai/ligant-client/internal/sse"
)

// Reconnection policy constants.
const (
	// DefaultMaxAttempts is how many reconnects are tried before the
	// monitor gives up silently.
	DefaultMaxAttempts = 5

	// baseRetryDelay is the delay before the first reconnect.
	baseRetryDelay = time.Second

	// maxRetryDelay caps the exponential backoff.
	maxRetryDelay = 30 * time.Second
)

// Streamer opens the per-job push-event channel. It is implemented by
// api.Client; tests substitute fakes.
type Streamer interface {
	JobStream(ctx context.Context, jobID string, opened func(), handler func(frame sse.Frame)) error
}

// RetryDelay returns the reconnect delay for the given attempt number,
// starting at zero: 1s, 2s, 4s, 8s, 16s, then capped at 30s.
func RetryDelay(attempt int) time.Duration {
	return retryDelayFrom(baseRetryDelay, attempt)
}

// retryDelayFrom is the single backoff formula: base doubled per attempt,
// capped at maxRetryDelay. The shift overflows negative for large attempt
// values, which the cap absorbs.
func retryDelayFrom(base time.Duration, attempt int) time.Duration {
	delay := base << uint(attempt)
	if delay <= 0 || delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}

// =============================================================================
// MONITOR
// =============================================================================

// Monitor observes one job over its push-event channel.
//
// Lifecycle: Connecting -> Open (receiving progress frames) -> terminal
// (completed or failed), or discarded via Stop. Any channel-level failure
// that is not a terminal frame triggers a reconnect with exponential
// backoff; there is no resumption of missed progress, the next frame
// received is taken as current truth.
type Monitor struct {
	jobID    string
	streamer Streamer

	// Test hooks; production values come from the constants above.
	baseDelay   time.Duration
	maxAttempts int

	mu       sync.Mutex
	state    model.JobState
	terminal bool

	// onUpdate fires after every state change, onTerminal exactly once
	// when a terminal frame arrives. Both run on the monitor goroutine.
	onUpdate   func(model.JobState)
	onTerminal func(model.JobState)

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// NewMonitor creates a monitor for jobID. Call Start to begin observing.
func NewMonitor(jobID string, streamer Streamer) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		jobID:       jobID,
		streamer:    streamer,
		baseDelay:   baseRetryDelay,
		maxAttempts: DefaultMaxAttempts,
		state:       model.NewJobState(jobID),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// OnUpdate sets the callback fired after every state change.
// Must be called before Start.
func (m *Monitor) OnUpdate(fn func(model.JobState)) *Monitor {
	m.onUpdate = fn
	return m
}

// OnTerminal sets the callback fired once when the job reaches a terminal
// state. Must be called before Start.
func (m *Monitor) OnTerminal(fn func(model.JobState)) *Monitor {
	m.onTerminal = fn
	return m
}

// JobID returns the observed job id.
func (m *Monitor) JobID() string {
	return m.jobID
}

// State returns a snapshot of the last-known job state.
func (m *Monitor) State() model.JobState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start launches the monitor goroutine.
func (m *Monitor) Start() {
	go m.run()
}

// Stop closes the channel and cancels any pending retry timer. It is safe
// to call in any state, any number of times.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
	})
}

// Done is closed when the monitor goroutine exits.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// run is the monitor goroutine: connect, stream frames, reconnect with
// backoff on connection errors, give up silently after maxAttempts.
func (m *Monitor) run() {
	defer close(m.done)

	attempt := 0
	for {
		if m.ctx.Err() != nil {
			return
		}

		// A successful connection open resets the retry counter.
		opened := func() { attempt = 0 }
		err := m.streamer.JobStream(m.ctx, m.jobID, opened, m.handleFrame)

		if m.isTerminal() || m.ctx.Err() != nil {
			return
		}

		// The server only closes the channel after a terminal frame, so a
		// clean close without one is treated like a connection error.
		_ = err

		if attempt >= m.maxAttempts {
			// Reconnects exhausted: state freezes at last-known value.
			return
		}

		delay := m.retryDelay(attempt)
		attempt++

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// retryDelay applies the backoff formula with the test-configurable base.
func (m *Monitor) retryDelay(attempt int) time.Duration {
	return retryDelayFrom(m.baseDelay, attempt)
}

// isTerminal reports whether a terminal frame has been handled.
func (m *Monitor) isTerminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminal
}

// =============================================================================
// FRAME HANDLING
// =============================================================================

// handleFrame applies one decoded frame to the job state. Frames whose
// payloads do not match the expected shape are dropped.
func (m *Monitor) handleFrame(frame sse.Frame) {
	switch frame.Event {
	case sse.EventProgress:
		var p sse.ProgressPayload
		if frame.Decode(&p) != nil {
			return
		}
		m.applyProgress(p)

	case sse.EventCompleted:
		var p sse.CompletedPayload
		if frame.Decode(&p) != nil {
			return
		}
		m.applyTerminal(func(s *model.JobState) {
			s.Progress = 1
			s.Status = model.JobStatusCompleted
			s.OutputArtifacts = p.OutputPDBIDs
			if p.Message != "" {
				s.Message = p.Message
			}
		})

	case sse.EventFailed:
		var p sse.FailedPayload
		if frame.Decode(&p) != nil {
			return
		}
		m.applyTerminal(func(s *model.JobState) {
			s.Status = model.JobStatusFailed
			s.Message = p.Message
		})

	case sse.EventError:
		// Channel-level error frame: terminal failure with a best-effort
		// message.
		var p sse.ErrorPayload
		message := "job stream error"
		if frame.Decode(&p) == nil && p.Error != "" {
			message = p.Error
		}
		m.applyTerminal(func(s *model.JobState) {
			s.Status = model.JobStatusFailed
			s.Message = message
		})
	}
}

// applyProgress updates the state from a progress frame without closing
// the channel.
func (m *Monitor) applyProgress(p sse.ProgressPayload) {
	m.mu.Lock()
	if m.terminal {
		m.mu.Unlock()
		return
	}
	m.state.Status = parseStatus(p.Status)
	if p.Progress != nil {
		m.state.Progress = *p.Progress
	}
	if p.Message != "" {
		m.state.Message = p.Message
	}
	state := m.state
	onUpdate := m.onUpdate
	m.mu.Unlock()

	if onUpdate != nil {
		onUpdate(state)
	}
}

// applyTerminal records a terminal state and closes the channel.
func (m *Monitor) applyTerminal(mutate func(*model.JobState)) {
	m.mu.Lock()
	if m.terminal {
		m.mu.Unlock()
		return
	}
	m.terminal = true
	mutate(&m.state)
	state := m.state
	onUpdate := m.onUpdate
	onTerminal := m.onTerminal
	m.mu.Unlock()

	// Terminal frames close the channel.
	m.cancel()

	if onUpdate != nil {
		onUpdate(state)
	}
	if onTerminal != nil {
		onTerminal(state)
	}
}

// parseStatus maps a wire status string to a JobStatus.
func parseStatus(s string) model.JobStatus {
	switch s {
	case "pending", "queued":
		return model.JobStatusQueued
	case "running":
		return model.JobStatusRunning
	case "completed":
		return model.JobStatusCompleted
	case "failed", "cancelled":
		return model.JobStatusFailed
	default:
		return model.JobStatusUnknown
	}
}
