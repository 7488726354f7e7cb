/*
Package streaming provides timeout-protected writes into a byte sink.

# Overview

The relay writes every received chunk into the encoder's standard input.
A wedged encoder (stalled network push, full pipe) would otherwise block the
session goroutine forever. [TimeoutWriter] bounds each write, splits large
chunks, and keeps byte accounting for metrics.

# Usage

	tw := streaming.NewTimeoutWriter(ctx, stdin, streaming.DefaultConfig())
	defer tw.Close()

	if _, err := tw.Write(chunk); errors.Is(err, streaming.ErrWriteTimeout) {
		// encoder is not draining its input
	}

Once a write times out the writer is canceled: the timed-out write may still
complete in the background, so any further write could reorder bytes. All
subsequent writes fail with [ErrStreamCanceled].

# Ordering

Chunks are written sequentially and each Write returns only after the sink
has accepted every byte, so the byte order seen by the sink equals the order
of Write calls. TimeoutWriter is safe for concurrent use, but concurrent
callers get no ordering guarantee relative to each other.
*/
package streaming
