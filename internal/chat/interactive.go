// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/ligant-ai/ligant-client/internal/model"
	"github.com/ligant-ai/ligant-client/internal/options"
)

// =============================================================================
// INTERACTIVE OPTION SETS
// =============================================================================

// OptionSet is an option block recovered from one assistant message.
type OptionSet struct {
	// MessageID identifies the assistant message the options came from.
	MessageID string

	// Body is the message text above the option block.
	Body string

	// Options is the ordered option list.
	Options []options.Option

	// Selected is the index of the option the user's following reply
	// chose, or -1 when none matched or no reply exists yet.
	Selected int
}

// ActiveOptions returns the single currently-interactive option set: the
// option block of the most recent assistant message with no user reply
// after it. ok is false when there is no such block.
func (s *Session) ActiveOptions() (OptionSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.messages) - 1; i >= 0; i-- {
		switch s.messages[i].Role {
		case model.RoleUser:
			// The latest assistant message already has a reply.
			return OptionSet{}, false
		case model.RoleAssistant:
			if s.streaming && i == s.assistantIdx {
				// Still assembling; options are not actionable yet.
				return OptionSet{}, false
			}
			body, opts := options.Parse(s.messages[i].Content)
			if len(opts) == 0 {
				return OptionSet{}, false
			}
			return OptionSet{
				MessageID: s.messages[i].ID,
				Body:      body,
				Options:   opts,
				Selected:  -1,
			}, true
		}
	}
	return OptionSet{}, false
}

// OptionSets recovers every option block in the conversation, oldest
// first. For historical blocks the selection is recovered by matching the
// next user message against the option labels and numbers; the final set,
// if unreplied, is the currently interactive one with Selected == -1.
func (s *Session) OptionSets() []OptionSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sets []OptionSet
	for i, msg := range s.messages {
		if msg.Role != model.RoleAssistant {
			continue
		}
		body, opts := options.Parse(msg.Content)
		if len(opts) == 0 {
			continue
		}

		set := OptionSet{
			MessageID: msg.ID,
			Body:      body,
			Options:   opts,
			Selected:  -1,
		}
		if reply, ok := nextUserReply(s.messages, i); ok {
			if idx, matched := options.MatchSelection(opts, reply); matched {
				set.Selected = idx
			}
		}
		sets = append(sets, set)
	}
	return sets
}

// nextUserReply returns the first user message after index i.
func nextUserReply(messages []model.Message, i int) (string, bool) {
	for j := i + 1; j < len(messages); j++ {
		if messages[j].Role == model.RoleUser {
			return messages[j].Content, true
		}
	}
	return "", false
}
