// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/ligant-ai/ligant-client/internal/api"
	"github.com/ligant-ai/ligant-client/internal/model"
)

// =============================================================================
// CONVERSATION SELECTION
// =============================================================================

// SelectConversation tears down the current message list and loads the
// history of conversationID. Text and tool calls display as soon as the
// history fetch returns; structure content referenced by artifact id is
// fetched and attached per-message afterwards, without blocking the rest.
func (s *Session) SelectConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	s.messages = nil
	s.assistantIdx = -1
	s.conversationID = conversationID
	s.loadingHistory = true
	s.mu.Unlock()
	s.notifyChange()

	items, err := s.backend.History(ctx, conversationID)
	if err != nil {
		s.mu.Lock()
		s.loadingHistory = false
		s.mu.Unlock()
		s.notifyChange()
		s.reportError(err)
		return err
	}

	messages := make([]model.Message, 0, len(items))
	for _, item := range items {
		messages = append(messages, historyMessage(item))
	}

	s.mu.Lock()
	if s.conversationID != conversationID {
		// Switched away while loading; discard the stale result.
		s.mu.Unlock()
		return nil
	}
	s.messages = messages
	s.loadingHistory = false
	s.mu.Unlock()
	s.notifyChange()

	go s.hydrateArtifacts(ctx, conversationID, messages)
	return nil
}

// Reset clears the session for a brand new conversation.
func (s *Session) Reset() {
	s.mu.Lock()
	s.messages = nil
	s.assistantIdx = -1
	s.conversationID = ""
	s.loadingHistory = false
	s.mu.Unlock()
	s.notifyChange()
}

// RefreshConversations reloads the conversation list.
func (s *Session) RefreshConversations(ctx context.Context) error {
	conversations, err := s.backend.Conversations(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conversations = conversations
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

// =============================================================================
// HISTORY HYDRATION
// =============================================================================

// historyMessage converts a persisted history item into a message.
// Visualization references stay as artifact ids until hydration attaches
// their content.
func historyMessage(item api.HistoryItem) model.Message {
	msg := model.Message{
		ID:        item.ID,
		Role:      model.Role(item.Role),
		Content:   item.Content,
		ModelUsed: item.ModelUsed,
	}
	if ts, err := time.Parse(time.RFC3339, item.CreatedAt); err == nil {
		msg.Timestamp = ts
	}

	if item.Metadata != nil {
		for _, tc := range item.Metadata.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, model.ToolCallRecord{
				Name:     tc.Name,
				Input:    tc.Input,
				Result:   tc.Result,
				Resolved: tc.Result != nil,
			})
		}
		msg.ArtifactRefs = append(msg.ArtifactRefs, item.Metadata.Visualizations...)
	}
	return msg
}

// hydrateArtifacts fetches referenced structure content per message and
// attaches it as the fetches complete. A message whose fetches all fail
// simply keeps no visualization; that is not an error.
func (s *Session) hydrateArtifacts(ctx context.Context, conversationID string, messages []model.Message) {
	for _, msg := range messages {
		if len(msg.ArtifactRefs) == 0 {
			continue
		}

		contents := s.backend.FetchArtifacts(ctx, msg.ArtifactRefs)
		if len(contents) == 0 {
			continue
		}

		s.mu.Lock()
		if s.conversationID != conversationID {
			s.mu.Unlock()
			return
		}
		for i := range s.messages {
			if s.messages[i].ID == msg.ID {
				s.messages[i].AddVisualization(model.DefaultVisualization(contents))
				s.messages[i].ArtifactRefs = nil
				break
			}
		}
		s.mu.Unlock()
		s.notifyChange()
	}
}
