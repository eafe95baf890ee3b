// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligant-ai/ligant-client/internal/api"
	"github.com/ligant-ai/ligant-client/internal/sse"
)

const optionMessage = "Two scaffold families fit this target:\n\n" +
	"1. **Helical bundle** — compact, easy to express\n" +
	"2. **Beta sheet scaffold** — wider interface\n" +
	"**Something else** — describe your own approach\n\n" +
	"Which direction should we take?"

func TestActiveOptionsOnLatestAssistantMessage(t *testing.T) {
	backend := &fakeBackend{
		history: []api.HistoryItem{
			{ID: "m1", Role: "user", Content: "suggest scaffolds"},
			{ID: "m2", Role: "assistant", Content: optionMessage},
		},
	}
	s := NewSession(backend)
	require.NoError(t, s.SelectConversation(context.Background(), "conv-1"))

	set, ok := s.ActiveOptions()
	require.True(t, ok)
	assert.Equal(t, "m2", set.MessageID)
	assert.Equal(t, -1, set.Selected)
	require.Len(t, set.Options, 3)
	assert.Equal(t, "Helical bundle", set.Options[0].Label)
	assert.Equal(t, 2, set.Options[1].Number)
	assert.True(t, set.Options[2].Freeform)
}

func TestActiveOptionsGoneAfterUserReply(t *testing.T) {
	backend := &fakeBackend{
		history: []api.HistoryItem{
			{ID: "m1", Role: "assistant", Content: optionMessage},
			{ID: "m2", Role: "user", Content: "2"},
		},
	}
	s := NewSession(backend)
	require.NoError(t, s.SelectConversation(context.Background(), "conv-1"))

	_, ok := s.ActiveOptions()
	assert.False(t, ok)
}

func TestActiveOptionsSuppressedWhileStreaming(t *testing.T) {
	backend := &fakeBackend{
		frames: []sse.Frame{f(sse.EventDone, `{}`)},
	}
	s := NewSession(backend)

	var duringStream bool
	backend.onSend = func() {
		_, duringStream = s.ActiveOptions()
	}
	require.NoError(t, s.SendMessage(context.Background(), "suggest scaffolds"))

	assert.False(t, duringStream)
}

func TestOptionSetsRecoverHistoricalSelection(t *testing.T) {
	backend := &fakeBackend{
		history: []api.HistoryItem{
			{ID: "m1", Role: "assistant", Content: optionMessage},
			{ID: "m2", Role: "user", Content: "2"},
			{ID: "m3", Role: "assistant", Content: optionMessage},
			{ID: "m4", Role: "user", Content: "something unrelated entirely"},
			{ID: "m5", Role: "assistant", Content: optionMessage},
		},
	}
	s := NewSession(backend)
	require.NoError(t, s.SelectConversation(context.Background(), "conv-1"))

	sets := s.OptionSets()
	require.Len(t, sets, 3)

	// Replied with the option number.
	assert.Equal(t, "m1", sets[0].MessageID)
	assert.Equal(t, 1, sets[0].Selected)

	// Reply matched nothing.
	assert.Equal(t, -1, sets[1].Selected)

	// No reply yet: the interactive set.
	assert.Equal(t, "m5", sets[2].MessageID)
	assert.Equal(t, -1, sets[2].Selected)
}
