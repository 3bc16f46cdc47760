// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream carries the event channel for one streaming generation.
//
// A Session is single-use: a provider client's producer goroutine feeds it
// chunks and finishes it exactly once, and the consumer drains Events until
// the channel closes. Events are a tagged union (Chunk, Done, Error,
// Stopped); exactly one terminal event arrives per session, in FIFO order
// after all delivered chunks.
//
//	sess, err := client.Generate(ctx, req)
//	if err != nil { ... }
//	for ev := range sess.Events() {
//	    switch ev.Kind {
//	    case stream.EventChunk:
//	        render(ev.Full)
//	    case stream.EventDone:
//	        commit(ev.Full)
//	    case stream.EventError:
//	        report(ev.Err)
//	    case stream.EventStopped:
//	        // user cancelled; partial text is discarded
//	    }
//	}
//
// Stop cancels the session's request context so the underlying connection
// closes promptly, suppresses further chunks, and turns the terminal event
// into Stopped no matter how the producer finished.
package stream
