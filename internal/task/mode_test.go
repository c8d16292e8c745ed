package task

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModeCycleReturnsAfterFour(t *testing.T) {
	for _, m := range Modes {
		require.Equal(t, m, m.Next().Next().Next().Next())
	}
}

func TestModeSuccessorOrder(t *testing.T) {
	require.Equal(t, ModeImage, ModeText.Next())
	require.Equal(t, ModeRag, ModeImage.Next())
	require.Equal(t, ModeAgent, ModeRag.Next())
	require.Equal(t, ModeText, ModeAgent.Next())
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		require.Equal(t, m, got)
	}

	got, err := ParseMode(" RAG ")
	require.NoError(t, err)
	require.Equal(t, ModeRag, got)

	got, err = ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeText, got)

	_, err = ParseMode("video")
	require.Error(t, err)
}

func TestIsFailure(t *testing.T) {
	require.True(t, IsFailure("Error: model not found"))
	require.True(t, IsFailure("HTTP Error: 500 Internal Server Error"))
	require.True(t, IsFailure("Request Error: dial tcp: refused"))
	require.False(t, IsFailure("4"))
	require.False(t, IsFailure("RAG doc loaded (simulated)."))
}

func TestNewAssignsID(t *testing.T) {
	a := New("hi", ModeText)
	b := New("hi", ModeText)
	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)
	require.Equal(t, "hi", a.Prompt)
}
