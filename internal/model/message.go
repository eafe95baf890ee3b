// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// =============================================================================
// TOOL CALL RECORD
// =============================================================================

// ToolCallRecord represents one agent tool invocation within a message.
// The record is created when the tool_call frame arrives; the result is
// attached later, exactly once, when the matching tool_result frame arrives.
type ToolCallRecord struct {
	// Name is the tool name, e.g. "run_rfdiffusion".
	Name string `json:"name"`

	// Input holds the opaque tool parameters as sent by the agent.
	Input map[string]interface{} `json:"input,omitempty"`

	// Result is the tool output, nil until resolved.
	Result interface{} `json:"result,omitempty"`

	// Resolved reports whether a result has been attached.
	Resolved bool `json:"resolved"`
}

// =============================================================================
// VISUALIZATION PAYLOAD
// =============================================================================

// Visualization display styles understood by the structure viewer.
const (
	StyleCartoon = "cartoon"
	StyleStick   = "stick"
	StyleSphere  = "sphere"
	StyleSurface = "surface"
)

// Visualization coloring modes.
const (
	ColorByChain     = "chain"
	ColorBySecondary = "ss"
	ColorByResidue   = "residue"
)

// VisualizationPayload carries raw structure text keyed by artifact id,
// plus the display tags chosen by the agent.
type VisualizationPayload struct {
	// PDBContents maps artifact id to raw structure text.
	PDBContents map[string]string `json:"pdb_contents"`

	// Style is the display style, e.g. "cartoon".
	Style string `json:"style"`

	// ColorBy is the coloring mode, e.g. "chain".
	ColorBy string `json:"color_by"`
}

// DefaultVisualization returns a payload with the default display tags.
func DefaultVisualization(contents map[string]string) VisualizationPayload {
	return VisualizationPayload{
		PDBContents: contents,
		Style:       StyleCartoon,
		ColorBy:     ColorByChain,
	}
}

// ArtifactIDs returns the artifact ids present in the payload, if any.
func (v VisualizationPayload) ArtifactIDs() []string {
	ids := make([]string, 0, len(v.PDBContents))
	for id := range v.PDBContents {
		ids = append(ids, id)
	}
	return ids
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Optimistic entries created before network confirmation carry a
// locally-generated id; persisted entries carry the server-assigned id.
// Server-confirmed fields (model used, conversation id) are reconciled
// onto the existing entry, never by delete-and-reinsert.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Content grows by pure concatenation while the message streams.
	Content string `json:"content"`

	// ToolCalls are the tool invocations made while producing this message,
	// in creation order.
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`

	// Visualizations attached to this message.
	Visualizations []VisualizationPayload `json:"visualizations,omitempty"`

	// ArtifactRefs are artifact ids referenced by a historical message whose
	// structure text has not been fetched yet.
	ArtifactRefs []string `json:"artifact_refs,omitempty"`

	// ModelUsed is the model identifier recorded when streaming completes.
	ModelUsed string `json:"model_used,omitempty"`

	// JobID binds the message to the background job that produced it, if any.
	JobID string `json:"job_id,omitempty"`
}

// NewLocalMessage creates an optimistic message with a locally-unique id.
func NewLocalMessage(role Role, content string) Message {
	return Message{
		ID:        "local-" + uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// AppendContent concatenates a streamed chunk onto the message content.
// Chunks may be arbitrarily small; prior content is never replaced.
func (m *Message) AppendContent(chunk string) {
	m.Content += chunk
}

// AddToolCall appends a new unresolved tool call record.
func (m *Message) AddToolCall(name string, input map[string]interface{}) {
	m.ToolCalls = append(m.ToolCalls, ToolCallRecord{Name: name, Input: input})
}

// AttachToolResult attaches a result to the oldest unresolved tool call with
// a matching name. Returns false if no such call exists. The wire protocol
// carries no call identifier, so same-named calls resolve FIFO by creation
// order.
func (m *Message) AttachToolResult(name string, result interface{}) bool {
	for i := range m.ToolCalls {
		if m.ToolCalls[i].Name == name && !m.ToolCalls[i].Resolved {
			m.ToolCalls[i].Result = result
			m.ToolCalls[i].Resolved = true
			return true
		}
	}
	return false
}

// AddVisualization appends a visualization payload to the message.
func (m *Message) AddVisualization(v VisualizationPayload) {
	m.Visualizations = append(m.Visualizations, v)
}

// IsBlank reports whether the message has no visible content at all.
func (m *Message) IsBlank() bool {
	return strings.TrimSpace(m.Content) == "" &&
		len(m.ToolCalls) == 0 && len(m.Visualizations) == 0
}

// Clone returns a copy whose slices do not alias the receiver's. Tool call
// records mutate in place when results attach, so a plain struct copy would
// let a snapshot observe later mutations.
func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = append([]ToolCallRecord(nil), m.ToolCalls...)
	}
	if m.Visualizations != nil {
		out.Visualizations = append([]VisualizationPayload(nil), m.Visualizations...)
	}
	if m.ArtifactRefs != nil {
		out.ArtifactRefs = append([]string(nil), m.ArtifactRefs...)
	}
	return out
}
