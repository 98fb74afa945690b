package filesink

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Value int `json:"value"`
}

func TestSinkConnectedLifecycle(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "telemetry.jsonl.gz")

	s, err := New(path)
	require.NoError(t, err)
	assert.True(t, s.Connected())

	require.NoError(t, s.Close())
	assert.False(t, s.Connected())

	t.Run("Close is idempotent", func(t *testing.T) {
		assert.NoError(t, s.Close())
	})

	t.Run("push after close errors", func(t *testing.T) {
		assert.Error(t, s.PushJSON(time.Now(), samplePayload{Value: 1}))
	})
}

func TestSinkWritesRoundTrippableGzippedJSONLines(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "telemetry.jsonl.gz")

	s, err := New(path)
	require.NoError(t, err)

	ts := time.Now()
	require.NoError(t, s.PushJSON(ts, samplePayload{Value: 42}))
	require.NoError(t, s.PushJSON(ts, samplePayload{Value: 43}))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	type readRecord struct {
		Timestamp time.Time     `json:"ts"`
		Payload   samplePayload `json:"payload"`
	}

	scanner := bufio.NewScanner(gz)
	var got []readRecord
	for scanner.Scan() {
		var rec readRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		got = append(got, rec)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, got, 2)
	assert.Equal(t, 42, got[0].Payload.Value)
	assert.Equal(t, 43, got[1].Payload.Value)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestFlushDoesNotError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "telemetry.jsonl.gz")
	s, err := New(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PushJSON(time.Now(), samplePayload{Value: 1}))
	assert.NoError(t, s.Flush())
}
