// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse decodes the server-sent-event push protocol used by the Ligant
// backend on both the chat stream and the per-job progress stream.
//
// The decoder is incremental: it accepts chunks split at arbitrary byte
// boundaries, including mid-line and mid-frame, and emits only fully-formed
// frames. A frame whose payload is not valid JSON is dropped silently so a
// single malformed frame cannot abort a long stream.
//
// # Usage
//
//	dec := sse.NewDecoder()
//	for {
//	    n, err := body.Read(buf)
//	    for _, frame := range dec.Feed(buf[:n]) {
//	        handle(frame)
//	    }
//	    if err != nil {
//	        for _, frame := range dec.Flush() {
//	            handle(frame)
//	        }
//	        break
//	    }
//	}
//
// One decoder instance decodes exactly one stream.
package sse
