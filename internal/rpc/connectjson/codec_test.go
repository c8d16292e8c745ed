package connectjson

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OSchengdu/swissK-agent/internal/rpc"
)

func TestCodecTaskMessages(t *testing.T) {
	var c Codec
	require.Equal(t, "json", c.Name())

	data, err := c.Marshal(&rpc.TaskStreamRequest{SessionID: "s", Task: &rpc.TaskRequest{Prompt: "hi", Mode: "rag"}})
	require.NoError(t, err)
	require.JSONEq(t, `{"session_id":"s","task":{"prompt":"hi","mode":"rag"}}`, string(data))

	var got rpc.TaskStreamRequest
	require.NoError(t, c.Unmarshal([]byte(`{"task":{"prompt":"x"},"extra":1}`), &got))
	require.Equal(t, "x", got.Task.Prompt)
}

func TestCodecRejectsEmptyAndInvalid(t *testing.T) {
	var c Codec
	var ev rpc.TaskEvent
	require.ErrorContains(t, c.Unmarshal([]byte("  "), &ev), "empty message")
	require.ErrorContains(t, c.Unmarshal([]byte("{"), &ev), "rpc.TaskEvent")
	_, err := c.Marshal(nil)
	require.Error(t, err)
}
