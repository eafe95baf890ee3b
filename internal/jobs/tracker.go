// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/ligant-ai/ligant-client/internal/model"
)

// =============================================================================
// PENDING JOB TRACKER
// =============================================================================

// Tracker is the set of background jobs whose completion has not yet been
// reconciled into chat state. Subscribers are notified whenever the set
// changes, so observers can open or close monitors to match.
type Tracker struct {
	mu     sync.Mutex
	jobs   map[string]model.PendingJob
	nextID int
	subs   map[int]func()
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		jobs: make(map[string]model.PendingJob),
		subs: make(map[int]func()),
	}
}

// Add registers a pending job. Returns false if the job is already tracked.
func (t *Tracker) Add(jobID, conversationID string) bool {
	t.mu.Lock()
	if _, exists := t.jobs[jobID]; exists {
		t.mu.Unlock()
		return false
	}
	t.jobs[jobID] = model.PendingJob{
		JobID:          jobID,
		ConversationID: conversationID,
		CreatedAt:      time.Now(),
	}
	t.mu.Unlock()

	t.notify()
	return true
}

// Remove drops a job from the set. Removing an untracked job is a no-op.
func (t *Tracker) Remove(jobID string) {
	t.mu.Lock()
	if _, exists := t.jobs[jobID]; !exists {
		t.mu.Unlock()
		return
	}
	delete(t.jobs, jobID)
	t.mu.Unlock()

	t.notify()
}

// Get returns the pending job with the given id.
func (t *Tracker) Get(jobID string) (model.PendingJob, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[jobID]
	return job, ok
}

// Jobs returns all pending jobs ordered by creation time.
func (t *Tracker) Jobs() []model.PendingJob {
	t.mu.Lock()
	defer t.mu.Unlock()

	jobs := make([]model.PendingJob, 0, len(t.jobs))
	for _, job := range t.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}

// ForConversation returns the pending jobs owned by a conversation.
func (t *Tracker) ForConversation(conversationID string) []model.PendingJob {
	var owned []model.PendingJob
	for _, job := range t.Jobs() {
		if job.ConversationID == conversationID {
			owned = append(owned, job)
		}
	}
	return owned
}

// Subscribe registers a change listener and returns an unsubscribe
// function. Listeners run synchronously on the mutating goroutine.
func (t *Tracker) Subscribe(fn func()) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// notify invokes subscribers outside the lock.
func (t *Tracker) notify() {
	t.mu.Lock()
	subs := make([]func(), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
