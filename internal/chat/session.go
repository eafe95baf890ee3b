// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/ligant-ai/ligant-client/internal/api"
	"github.com/ligant-ai/ligant-client/internal/model"
	"github.com/ligant-ai/ligant-client/internal/sse"
)

// Backend is the subset of the api client the session depends on.
type Backend interface {
	SendMessage(ctx context.Context, text, conversationID string, handler api.FrameHandler) error
	History(ctx context.Context, conversationID string) ([]api.HistoryItem, error)
	Conversations(ctx context.Context) ([]model.Conversation, error)
	FetchArtifacts(ctx context.Context, artifactIDs []string) map[string]string
}

// JobSink receives job identifiers discovered in tool results, so the
// pending-job set can start monitoring them.
type JobSink interface {
	Add(jobID, conversationID string) bool
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the state machine for the active conversation.
type Session struct {
	backend Backend
	jobSink JobSink

	mu             sync.Mutex
	conversationID string
	messages       []model.Message
	conversations  []model.Conversation
	streaming      bool
	loadingHistory bool

	// assistantIdx is the index of the placeholder assistant message being
	// assembled by the current stream.
	assistantIdx int

	// needRefresh is set by the done frame to trigger a conversation list
	// refresh after the stream ends.
	needRefresh bool

	// onChange fires after every state mutation; onError fires when a
	// user-initiated action fails. Both run outside the session lock.
	onChange func()
	onError  func(error)
}

// NewSession creates a session over the given backend.
func NewSession(backend Backend) *Session {
	return &Session{backend: backend, assistantIdx: -1}
}

// WithJobSink routes job ids found in tool results to the pending-job set.
func (s *Session) WithJobSink(sink JobSink) *Session {
	s.jobSink = sink
	return s
}

// OnChange sets the callback fired after every state mutation.
func (s *Session) OnChange(fn func()) *Session {
	s.onChange = fn
	return s
}

// OnError sets the callback fired when a user-initiated action fails.
func (s *Session) OnError(fn func(error)) *Session {
	s.onError = fn
	return s
}

// notifyChange fires the change callback. Never call under the lock.
func (s *Session) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

// reportError fires the error callback. Never call under the lock.
func (s *Session) reportError(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// ConversationID returns the bound conversation id, empty for a fresh
// conversation that has not received its server-assigned id yet.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Messages returns a snapshot of the message list. The snapshot is deep
// enough that streaming mutations never show through it: a caller may hold
// it across an active stream.
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	for i := range s.messages {
		out[i] = s.messages[i].Clone()
	}
	return out
}

// Conversations returns a snapshot of the conversation list.
func (s *Session) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// IsStreaming reports whether an agent response is streaming in. While
// true, new sends are rejected.
func (s *Session) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// IsLoadingHistory reports whether past messages are being fetched. This is
// distinct from IsStreaming so callers can tell "fetching past messages"
// from "agent is responding".
func (s *Session) IsLoadingHistory() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingHistory
}

// =============================================================================
// SEND
// =============================================================================

// SendMessage sends user text to the agent and processes the response
// stream until it ends. Empty text and sends issued while a response is
// already streaming are no-ops.
//
// The user message and an assistant placeholder are appended synchronously
// before any network activity, with stable identities. On transport failure
// the error is surfaced and both messages stay in place.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return nil
	}
	s.streaming = true
	s.needRefresh = false
	s.messages = append(s.messages, model.NewLocalMessage(model.RoleUser, text))
	s.messages = append(s.messages, model.NewLocalMessage(model.RoleAssistant, ""))
	s.assistantIdx = len(s.messages) - 1
	conversationID := s.conversationID
	s.mu.Unlock()

	s.notifyChange()

	// Guaranteed exit-path cleanup: the session returns to Idle however
	// streaming ends.
	defer func() {
		s.mu.Lock()
		s.streaming = false
		s.assistantIdx = -1
		s.mu.Unlock()
		s.notifyChange()
	}()

	if err := s.backend.SendMessage(ctx, text, conversationID, s.handleFrame); err != nil {
		s.reportError(err)
		return err
	}

	s.mu.Lock()
	refresh := s.needRefresh
	s.mu.Unlock()
	if refresh {
		// Surfaces newly created conversations; a failed refresh is not an
		// error for the send itself.
		if err := s.RefreshConversations(ctx); err != nil {
			return nil
		}
	}
	return nil
}

// =============================================================================
// FRAME HANDLERS
// =============================================================================

// handleFrame applies one decoded frame to session state. Frames whose
// payloads do not match the expected shape are dropped, like malformed
// frames at the decode boundary.
func (s *Session) handleFrame(frame sse.Frame) {
	// Job ids discovered in tool results are forwarded outside the lock:
	// sink subscribers may call back into the session.
	var discoveredJob string

	s.mu.Lock()
	switch frame.Event {
	case sse.EventConversationID:
		var p sse.ConversationIDPayload
		if frame.Decode(&p) == nil && p.ConversationID != "" {
			s.conversationID = p.ConversationID
		}

	case sse.EventText:
		var chunk string
		if frame.Decode(&chunk) == nil {
			if m := s.assistantMessage(); m != nil {
				m.AppendContent(chunk)
			}
		}

	case sse.EventToolCall:
		var p sse.ToolCallPayload
		if frame.Decode(&p) == nil && p.Name != "" {
			if m := s.assistantMessage(); m != nil {
				m.AddToolCall(p.Name, p.Input)
			}
		}

	case sse.EventToolResult:
		var p sse.ToolResultPayload
		if frame.Decode(&p) == nil && p.Name != "" {
			if m := s.assistantMessage(); m != nil {
				m.AttachToolResult(p.Name, p.Result)
				discoveredJob = jobIDFromResult(p.Result)
				if discoveredJob != "" {
					m.JobID = discoveredJob
				}
			}
		}

	case sse.EventVisualization:
		var p sse.VisualizationPayload
		if frame.Decode(&p) == nil && len(p.PDBContents) > 0 {
			if m := s.assistantMessage(); m != nil {
				m.AddVisualization(model.VisualizationPayload{
					PDBContents: p.PDBContents,
					Style:       p.Style,
					ColorBy:     p.ColorBy,
				})
			}
		}

	case sse.EventTitle:
		var p sse.TitlePayload
		if frame.Decode(&p) == nil && p.Title != "" {
			for i := range s.conversations {
				if s.conversations[i].ID == s.conversationID {
					s.conversations[i].Title = p.Title
					break
				}
			}
		}

	case sse.EventDone:
		var p sse.DonePayload
		if frame.Decode(&p) == nil {
			if m := s.assistantMessage(); m != nil {
				m.ModelUsed = p.ModelUsed
			}
			s.needRefresh = true
		}
	}
	conversationID := s.conversationID
	s.mu.Unlock()

	if discoveredJob != "" && s.jobSink != nil {
		s.jobSink.Add(discoveredJob, conversationID)
	}
	s.notifyChange()
}

// assistantMessage returns the placeholder assistant message under
// assembly, or nil when no stream is active. Callers hold the lock.
func (s *Session) assistantMessage() *model.Message {
	if s.assistantIdx < 0 || s.assistantIdx >= len(s.messages) {
		return nil
	}
	return &s.messages[s.assistantIdx]
}

// jobIDFromResult extracts a job identifier from a tool result payload.
// Design-launching tools return {"job_id": ...} in their result.
func jobIDFromResult(result interface{}) string {
	m, ok := result.(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := m["job_id"].(string)
	return id
}

// =============================================================================
// INJECTION (used by the visualization coordinator)
// =============================================================================

// ActiveConversation returns the conversation id currently on screen.
func (s *Session) ActiveConversation() string {
	return s.ConversationID()
}

// InjectVisualization appends a synthesized system-role message carrying
// job output structures. The message is only injected when the owning
// conversation is the active one; the returned id is empty otherwise.
func (s *Session) InjectVisualization(conversationID, jobID, text string, viz model.VisualizationPayload) (string, bool) {
	s.mu.Lock()
	if s.conversationID != conversationID {
		s.mu.Unlock()
		return "", false
	}
	msg := model.NewLocalMessage(model.RoleSystem, text)
	msg.JobID = jobID
	msg.AddVisualization(viz)
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.notifyChange()
	return msg.ID, true
}

// InjectNotice appends a system-role notice -- used for job failure
// recovery -- but only when the owning conversation is active and no
// response is streaming, so an automatic message never interleaves into an
// unrelated or busy conversation.
func (s *Session) InjectNotice(conversationID, text string) bool {
	s.mu.Lock()
	if s.conversationID != conversationID || s.streaming {
		s.mu.Unlock()
		return false
	}
	s.messages = append(s.messages, model.NewLocalMessage(model.RoleSystem, text))
	s.mu.Unlock()

	s.notifyChange()
	return true
}
