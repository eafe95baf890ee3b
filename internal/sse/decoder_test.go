// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStream = "event: conversation_id\n" +
	"data: {\"conversation_id\": \"c-1\"}\n" +
	"\n" +
	"event: text\n" +
	"data: \"Hel\"\n" +
	"\n" +
	"event: text\n" +
	"data: \"lo\"\n" +
	"\n" +
	"event: done\n" +
	"data: {\"model_used\": \"claude-sonnet\"}\n" +
	"\n"

// feedAll feeds the input in chunks of the given size and returns every
// emitted frame, including the flush.
func feedAll(input string, chunkSize int) []Frame {
	dec := NewDecoder()
	var frames []Frame
	for i := 0; i < len(input); i += chunkSize {
		end := i + chunkSize
		if end > len(input) {
			end = len(input)
		}
		frames = append(frames, dec.Feed([]byte(input[i:end]))...)
	}
	return append(frames, dec.Flush()...)
}

func TestDecoder_BasicStream(t *testing.T) {
	frames := feedAll(sampleStream, len(sampleStream))
	require.Len(t, frames, 4)

	assert.Equal(t, EventConversationID, frames[0].Event)
	assert.Equal(t, EventText, frames[1].Event)
	assert.Equal(t, EventText, frames[2].Event)
	assert.Equal(t, EventDone, frames[3].Event)

	var chunk string
	require.NoError(t, frames[1].Decode(&chunk))
	assert.Equal(t, "Hel", chunk)

	var done DonePayload
	require.NoError(t, frames[3].Decode(&done))
	assert.Equal(t, "claude-sonnet", done.ModelUsed)
}

// TestDecoder_ChunkBoundaryInvariance verifies that the frame sequence does
// not depend on how the transport splits the byte stream.
func TestDecoder_ChunkBoundaryInvariance(t *testing.T) {
	want := feedAll(sampleStream, len(sampleStream))

	for _, size := range []int{1, 2, 3, 5, 7, 16, 64} {
		got := feedAll(sampleStream, size)
		require.Len(t, got, len(want), "chunk size %d", size)
		for i := range want {
			assert.Equal(t, want[i].Event, got[i].Event, "chunk size %d frame %d", size, i)
			assert.JSONEq(t, string(want[i].Data), string(got[i].Data), "chunk size %d frame %d", size, i)
		}
	}
}

// TestDecoder_MalformedPayloadDropped verifies that a frame with invalid
// JSON is dropped silently and decoding continues.
func TestDecoder_MalformedPayloadDropped(t *testing.T) {
	input := "event: text\n" +
		"data: {not json\n" +
		"\n" +
		"event: text\n" +
		"data: \"ok\"\n" +
		"\n"

	frames := feedAll(input, 4)
	require.Len(t, frames, 1)
	assert.Equal(t, EventText, frames[0].Event)

	var s string
	require.NoError(t, frames[0].Decode(&s))
	assert.Equal(t, "ok", s)
}

// TestDecoder_LastDataLineWins verifies that only the last data line before
// the blank delimiter is retained.
func TestDecoder_LastDataLineWins(t *testing.T) {
	input := "event: text\n" +
		"data: \"first\"\n" +
		"data: \"second\"\n" +
		"\n"

	frames := feedAll(input, len(input))
	require.Len(t, frames, 1)

	var s string
	require.NoError(t, frames[0].Decode(&s))
	assert.Equal(t, "second", s)
}

func TestDecoder_CRLFLines(t *testing.T) {
	input := "event: title\r\n" +
		"data: {\"title\": \"Binder design\"}\r\n" +
		"\r\n"

	frames := feedAll(input, 3)
	require.Len(t, frames, 1)

	var title TitlePayload
	require.NoError(t, frames[0].Decode(&title))
	assert.Equal(t, "Binder design", title.Title)
}

// TestDecoder_FlushEmitsTrailingFrame covers a stream whose final blank
// line was cut off when the connection closed.
func TestDecoder_FlushEmitsTrailingFrame(t *testing.T) {
	input := "event: failed\n" +
		"data: {\"message\": \"GPU out of memory\"}"

	dec := NewDecoder()
	frames := dec.Feed([]byte(input))
	assert.Empty(t, frames)

	frames = dec.Flush()
	require.Len(t, frames, 1)
	assert.Equal(t, EventFailed, frames[0].Event)
}

func TestDecoder_IgnoresUnknownFields(t *testing.T) {
	input := ": keepalive comment\n" +
		"id: 42\n" +
		"retry: 1000\n" +
		"event: progress\n" +
		"data: {\"status\": \"running\", \"progress\": 0.5}\n" +
		"\n"

	frames := feedAll(input, 9)
	require.Len(t, frames, 1)
	assert.Equal(t, EventProgress, frames[0].Event)
}

func TestDecoder_NoDataNoFrame(t *testing.T) {
	input := "event: text\n\n"
	frames := feedAll(input, len(input))
	assert.Empty(t, frames)
}
