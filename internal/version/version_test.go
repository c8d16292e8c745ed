package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFullUsesInjectedCommit(t *testing.T) {
	oldV, oldC := Version, Commit
	t.Cleanup(func() { Version, Commit = oldV, oldC })
	Version, Commit = "9.9.9", "abc123"
	require.Equal(t, "swissk 9.9.9 (commit:abc123, built:unknown)", Full())
}

func TestRevisionFallback(t *testing.T) {
	old := Commit
	t.Cleanup(func() { Commit = old })
	Commit = ""
	require.NotEmpty(t, Revision())
}
