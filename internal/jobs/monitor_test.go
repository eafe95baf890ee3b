// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligant-ai/ligant-client/internal/model"
	"github.com/ligant-ai/ligant-client/internal/sse"
)

func frame(event, data string) sse.Frame {
	return sse.Frame{Event: event, Data: json.RawMessage(data)}
}

// fakeStreamer runs a scripted function per connection attempt.
type fakeStreamer struct {
	mu       sync.Mutex
	attempts int
	connect  func(attempt int, ctx context.Context, opened func(), handler func(sse.Frame)) error
}

func (f *fakeStreamer) JobStream(ctx context.Context, jobID string, opened func(), handler func(frame sse.Frame)) error {
	f.mu.Lock()
	f.attempts++
	n := f.attempts
	f.mu.Unlock()
	return f.connect(n, ctx, opened, handler)
}

func (f *fakeStreamer) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func TestRetryDelaySequence(t *testing.T) {
	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
	}
	for attempt, expected := range want {
		assert.Equal(t, expected, RetryDelay(attempt), "attempt %d", attempt)
	}

	// The delay is capped, never larger than 30s even for huge attempts.
	assert.Equal(t, 30*time.Second, RetryDelay(5))
	assert.Equal(t, 30*time.Second, RetryDelay(20))
	assert.Equal(t, 30*time.Second, RetryDelay(63))
}

func TestRetryDelayHonorsBase(t *testing.T) {
	// Monitors follow the same curve as RetryDelay, scaled by their base.
	m := NewMonitor("job-1", &fakeStreamer{})
	for attempt := 0; attempt < 8; attempt++ {
		assert.Equal(t, RetryDelay(attempt), m.retryDelay(attempt), "attempt %d", attempt)
	}

	m.baseDelay = time.Millisecond
	assert.Equal(t, 2*time.Millisecond, m.retryDelay(1))
	assert.Equal(t, 8*time.Millisecond, m.retryDelay(3))
	assert.Equal(t, maxRetryDelay, m.retryDelay(63))
}

func TestMonitorProgressFrames(t *testing.T) {
	streamer := &fakeStreamer{
		connect: func(attempt int, ctx context.Context, opened func(), handler func(sse.Frame)) error {
			opened()
			handler(frame(sse.EventProgress, `{"job_id":"job-1","status":"running","progress":0.25,"message":"designing"}`))
			handler(frame(sse.EventProgress, `{"job_id":"job-1","status":"running","progress":0.5}`))
			handler(frame(sse.EventCompleted, `{"job_id":"job-1","output_pdb_ids":["pdb-a"]}`))
			<-ctx.Done()
			return ctx.Err()
		},
	}

	var updates []model.JobState
	var mu sync.Mutex
	m := NewMonitor("job-1", streamer).OnUpdate(func(state model.JobState) {
		mu.Lock()
		updates = append(updates, state)
		mu.Unlock()
	})
	m.Start()

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 3)
	assert.Equal(t, model.JobStatusRunning, updates[0].Status)
	assert.Equal(t, 0.25, updates[0].Progress)
	assert.Equal(t, "designing", updates[0].Message)
	// A progress frame without a message keeps the previous one.
	assert.Equal(t, 0.5, updates[1].Progress)
	assert.Equal(t, "designing", updates[1].Message)
	// Completion forces progress to 1.
	assert.Equal(t, model.JobStatusCompleted, updates[2].Status)
	assert.Equal(t, 1.0, updates[2].Progress)
	assert.Equal(t, []string{"pdb-a"}, updates[2].OutputArtifacts)
}

func TestMonitorTerminalFiresOnce(t *testing.T) {
	streamer := &fakeStreamer{
		connect: func(attempt int, ctx context.Context, opened func(), handler func(sse.Frame)) error {
			opened()
			handler(frame(sse.EventCompleted, `{"job_id":"job-1","output_pdb_ids":[]}`))
			// A second terminal frame after the first is ignored.
			handler(frame(sse.EventFailed, `{"job_id":"job-1","message":"late"}`))
			<-ctx.Done()
			return ctx.Err()
		},
	}

	var terminals int
	var mu sync.Mutex
	m := NewMonitor("job-1", streamer).OnTerminal(func(state model.JobState) {
		mu.Lock()
		terminals++
		mu.Unlock()
		assert.Equal(t, model.JobStatusCompleted, state.Status)
	})
	m.Start()
	<-m.Done()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, terminals)
}

func TestMonitorErrorFrameIsTerminalFailure(t *testing.T) {
	streamer := &fakeStreamer{
		connect: func(attempt int, ctx context.Context, opened func(), handler func(sse.Frame)) error {
			opened()
			handler(frame(sse.EventError, `{"error":"worker crashed"}`))
			<-ctx.Done()
			return ctx.Err()
		},
	}

	m := NewMonitor("job-1", streamer)
	m.Start()
	<-m.Done()

	state := m.State()
	assert.Equal(t, model.JobStatusFailed, state.Status)
	assert.Equal(t, "worker crashed", state.Message)
}

func TestMonitorMalformedFrameDropped(t *testing.T) {
	streamer := &fakeStreamer{
		connect: func(attempt int, ctx context.Context, opened func(), handler func(sse.Frame)) error {
			opened()
			handler(frame(sse.EventProgress, `"not an object"`))
			handler(frame(sse.EventCompleted, `{"job_id":"job-1","output_pdb_ids":["pdb-a"]}`))
			<-ctx.Done()
			return ctx.Err()
		},
	}

	m := NewMonitor("job-1", streamer)
	m.Start()
	<-m.Done()

	assert.Equal(t, model.JobStatusCompleted, m.State().Status)
}

func TestMonitorReconnectsThenGivesUp(t *testing.T) {
	streamer := &fakeStreamer{
		connect: func(attempt int, ctx context.Context, opened func(), handler func(sse.Frame)) error {
			return errors.New("connection refused")
		},
	}

	m := NewMonitor("job-1", streamer)
	m.baseDelay = time.Millisecond
	m.Start()

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not give up")
	}

	// Initial attempt plus maxAttempts reconnects, then silence.
	assert.Equal(t, DefaultMaxAttempts+1, streamer.attemptCount())
	// Giving up never marks the job failed; state stays at last-known.
	assert.Equal(t, model.JobStatusUnknown, m.State().Status)
}

func TestMonitorRetryCounterResetsOnSuccessfulOpen(t *testing.T) {
	// Connections 1-3 fail outright. Connection 4 opens (resetting the
	// counter) and drops. The monitor still has a full retry budget, so
	// connection 5 can deliver the terminal frame.
	streamer := &fakeStreamer{}
	streamer.connect = func(attempt int, ctx context.Context, opened func(), handler func(sse.Frame)) error {
		switch {
		case attempt <= 3:
			return errors.New("connection refused")
		case attempt == 4:
			opened()
			return errors.New("connection reset")
		default:
			opened()
			handler(frame(sse.EventCompleted, `{"job_id":"job-1","output_pdb_ids":["pdb-a"]}`))
			<-ctx.Done()
			return ctx.Err()
		}
	}

	m := NewMonitor("job-1", streamer)
	m.baseDelay = time.Millisecond
	m.Start()

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not finish")
	}

	assert.Equal(t, model.JobStatusCompleted, m.State().Status)
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	streamer := &fakeStreamer{
		connect: func(attempt int, ctx context.Context, opened func(), handler func(sse.Frame)) error {
			opened()
			<-ctx.Done()
			return ctx.Err()
		},
	}

	m := NewMonitor("job-1", streamer)
	m.Start()

	m.Stop()
	m.Stop()
	m.Stop()

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestMonitorNoTerminalCallbackAfterStop(t *testing.T) {
	block := make(chan struct{})
	streamer := &fakeStreamer{
		connect: func(attempt int, ctx context.Context, opened func(), handler func(sse.Frame)) error {
			opened()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-block:
				return nil
			}
		},
	}

	var terminals int
	var mu sync.Mutex
	m := NewMonitor("job-1", streamer).OnTerminal(func(model.JobState) {
		mu.Lock()
		terminals++
		mu.Unlock()
	})
	m.Start()
	m.Stop()
	<-m.Done()

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, terminals)
}
