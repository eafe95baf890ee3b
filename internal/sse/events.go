// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

// Typed payloads for the chat stream. Payload shapes are validated where
// frames are handled; a frame whose payload does not match its expected
// shape is treated the same as a malformed frame and dropped.

// ConversationIDPayload is the payload of a conversation_id event.
type ConversationIDPayload struct {
	ConversationID string `json:"conversation_id"`
}

// ToolCallPayload is the payload of a tool_call event.
type ToolCallPayload struct {
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// ToolResultPayload is the payload of a tool_result event.
type ToolResultPayload struct {
	Name   string      `json:"name"`
	Result interface{} `json:"result"`
}

// VisualizationPayload is the payload of a visualization event.
type VisualizationPayload struct {
	PDBContents map[string]string `json:"pdb_contents"`
	Style       string            `json:"style"`
	ColorBy     string            `json:"color_by"`
}

// TitlePayload is the payload of a title event.
type TitlePayload struct {
	Title string `json:"title"`
}

// DonePayload is the payload of a done event.
type DonePayload struct {
	ModelUsed string `json:"model_used"`
}

// Typed payloads for the per-job progress stream.

// ProgressPayload is the payload of a progress event.
type ProgressPayload struct {
	JobID    string   `json:"job_id"`
	Status   string   `json:"status"`
	Progress *float64 `json:"progress"`
	Message  string   `json:"message"`
}

// CompletedPayload is the payload of a completed event.
type CompletedPayload struct {
	JobID        string   `json:"job_id"`
	Message      string   `json:"message"`
	OutputPDBIDs []string `json:"output_pdb_ids"`
}

// FailedPayload is the payload of a failed event.
type FailedPayload struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// ErrorPayload is the payload of a channel-level error event.
type ErrorPayload struct {
	Error string `json:"error"`
}
