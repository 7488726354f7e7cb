package ingest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"stream-relay/internal/transcoder"
)

// TestRelayIntoEncoderProcess drives a real supervisor whose encoder is a
// shell script copying stdin to a file.
func TestRelayIntoEncoderProcess(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "received")
	script := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat > "+out+"\n"), 0o755))

	sup := transcoder.New(transcoder.Options{Path: script})
	require.NoError(t, sup.Start(context.Background()))
	t.Cleanup(func() { _ = sup.Shutdown(context.Background(), transcoder.ShutdownKill) })

	journal := newFakeJournal()
	url := startServer(t, NewHandler(sup, journal, Config{}))

	conn := dial(t, url)
	var want bytes.Buffer
	for i := 0; i < 20; i++ {
		chunk := bytes.Repeat([]byte{byte('A' + i)}, 4096+i)
		want.Write(chunk)
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, chunk))
	}
	closeNormally(t, conn)
	journal.waitEnd(t)

	require.NoError(t, sup.Shutdown(context.Background(), transcoder.ShutdownDrain))
	require.Equal(t, transcoder.StateExited, sup.Status().State)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	require.True(t, bytes.Equal(want.Bytes(), got), "encoder received %d bytes, want %d", len(got), want.Len())
}
