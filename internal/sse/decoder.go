// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bytes"
	"encoding/json"
)

// =============================================================================
// EVENT NAMES
// =============================================================================

// Chat stream events.
const (
	EventConversationID = "conversation_id"
	EventText           = "text"
	EventToolCall       = "tool_call"
	EventToolResult     = "tool_result"
	EventVisualization  = "visualization"
	EventTitle          = "title"
	EventDone           = "done"
)

// Job stream events.
const (
	EventProgress  = "progress"
	EventCompleted = "completed"
	EventFailed    = "failed"
	EventError     = "error"
)

// =============================================================================
// FRAME
// =============================================================================

// Frame is one decoded (event-type, payload) unit from a push-event stream.
// Data is guaranteed to be valid JSON; frames that fail JSON validation are
// never emitted.
type Frame struct {
	// Event is the event type from the type marker line.
	Event string

	// Data is the JSON payload from the last data line of the frame.
	Data json.RawMessage
}

// Decode unmarshals the frame payload into v.
func (f Frame) Decode(v interface{}) error {
	return json.Unmarshal(f.Data, v)
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder incrementally parses a push-event byte stream into frames.
// It is stateless across streams: use one instance per stream.
type Decoder struct {
	// carry holds a partial line left over from the previous chunk.
	carry []byte

	// Current frame accumulation.
	event   string
	data    []byte
	hasData bool
}

// NewDecoder creates a decoder for a single stream.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes the next chunk and returns every frame completed by it,
// in arrival order. Chunks may split lines and frames at any byte boundary;
// the decoder carries partial lines across calls.
func (d *Decoder) Feed(chunk []byte) []Frame {
	var frames []Frame

	d.carry = append(d.carry, chunk...)
	for {
		nl := bytes.IndexByte(d.carry, '\n')
		if nl < 0 {
			break
		}
		line := d.carry[:nl]
		d.carry = d.carry[nl+1:]

		if frame, ok := d.consumeLine(line); ok {
			frames = append(frames, frame)
		}
	}

	return frames
}

// Flush terminates the stream, emitting a trailing frame whose final blank
// line was cut off by the transport closing. The decoder must not be fed
// again after Flush.
func (d *Decoder) Flush() []Frame {
	var frames []Frame

	// A partial last line may still complete the pending frame's data.
	if len(d.carry) > 0 {
		line := d.carry
		d.carry = nil
		if frame, ok := d.consumeLine(line); ok {
			frames = append(frames, frame)
		}
	}

	if frame, ok := d.endFrame(); ok {
		frames = append(frames, frame)
	}
	return frames
}

// consumeLine processes one complete line. It returns a frame when the line
// is the blank delimiter and the pending frame is well-formed.
func (d *Decoder) consumeLine(line []byte) (Frame, bool) {
	line = bytes.TrimRight(line, "\r")

	// Blank line delimits the frame.
	if len(line) == 0 {
		return d.endFrame()
	}

	switch {
	case bytes.HasPrefix(line, []byte("event:")):
		d.event = string(bytes.TrimSpace(line[len("event:"):]))
	case bytes.HasPrefix(line, []byte("data:")):
		// Only the last data line before the blank line is retained; the
		// protocol does not use multi-line payloads.
		d.data = append(d.data[:0], bytes.TrimSpace(line[len("data:"):])...)
		d.hasData = true
	}
	// Other fields (id:, retry:, comment lines) are ignored.

	return Frame{}, false
}

// endFrame finalizes the pending frame, dropping it silently when the
// payload is missing or is not valid JSON.
func (d *Decoder) endFrame() (Frame, bool) {
	event, data, hasData := d.event, d.data, d.hasData
	d.event = ""
	d.data = nil
	d.hasData = false

	if !hasData || !json.Valid(data) {
		return Frame{}, false
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return Frame{Event: event, Data: raw}, true
}
