// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ligant-ai/ligant-client/internal/sse"
)

// FrameHandler receives decoded frames in arrival order.
type FrameHandler = func(frame sse.Frame)

// sendMessageRequest is the body of the send-message endpoint.
type sendMessageRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// =============================================================================
// CHAT STREAM
// =============================================================================

// SendMessage posts a chat message and decodes the response stream, calling
// handler for each frame in arrival order. It returns once the stream ends.
//
// Frames with malformed payloads are dropped by the decoder; a transport
// failure after frames were delivered still returns the error, and the
// caller keeps whatever state those frames already produced.
func (c *Client) SendMessage(ctx context.Context, text, conversationID string, handler FrameHandler) error {
	if !c.IsConfigured() {
		return ErrNoToken
	}

	payload, err := json.Marshal(sendMessageRequest{
		Message:        text,
		ConversationID: conversationID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/chat/message", strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := c.checkStatus(resp); err != nil {
		return err
	}

	return processStream(ctx, resp.Body, handler)
}

// =============================================================================
// JOB PROGRESS STREAM
// =============================================================================

// JobStream opens the per-job push-event channel and decodes its frames.
// The channel authenticates through a token query parameter because this
// channel type cannot carry custom headers. opened is called once after the
// connection is established, before any frame is delivered; pass nil to
// skip the notification.
//
// JobStream returns nil when the server closes the channel (it does so
// after a terminal frame) and an error on connection-level failure.
func (c *Client) JobStream(ctx context.Context, jobID string, opened func(), handler FrameHandler) error {
	if !c.IsConfigured() {
		return ErrNoToken
	}

	streamURL := c.baseURL + "/api/job/" + url.PathEscape(jobID) + "/stream" +
		"?token=" + url.QueryEscape(c.Token())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := c.checkStatus(resp); err != nil {
		return err
	}

	if opened != nil {
		opened()
	}
	return processStream(ctx, resp.Body, handler)
}

// =============================================================================
// STREAM PROCESSING
// =============================================================================

// processStream feeds the response body through a frame decoder until the
// stream ends. The body is closed before returning.
func processStream(ctx context.Context, body io.ReadCloser, handler FrameHandler) error {
	defer body.Close()

	dec := sse.NewDecoder()
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := body.Read(buf)
		if n > 0 {
			for _, frame := range dec.Feed(buf[:n]) {
				handler(frame)
			}
		}
		if err == io.EOF {
			for _, frame := range dec.Flush() {
				handler(frame)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream read failed: %w", err)
		}
	}
}
