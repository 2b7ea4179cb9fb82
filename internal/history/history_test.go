package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/ecofarmcast-go/internal/transcript"
)

func TestStore_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s := Open(path)
	t.Cleanup(func() { _ = s.Close() })
	require.True(t, s.Persistent())

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.Save(FromTranscript("a", transcript.NewUserMessage("how is my soil?", at)))
	s.Save(FromTranscript("b", transcript.NewUserMessage("other session", at)))
	s.Save(FromTranscript("a", transcript.NewErrorMessage("oops", at.Add(time.Second))))

	got := s.List("a")
	require.Len(t, got, 2)
	require.Equal(t, "user", got[0].Role)
	require.Equal(t, "how is my soil?", got[0].Content)
	require.False(t, got[0].IsError)
	require.Equal(t, "assistant", got[1].Role)
	require.True(t, got[1].IsError)
	require.True(t, got[1].CreatedAt.Equal(at.Add(time.Second)))
	require.Less(t, got[0].ID, got[1].ID)

	// reopening keeps the rows
	require.NoError(t, s.Close())
	s2 := Open(path)
	t.Cleanup(func() { _ = s2.Close() })
	require.Len(t, s2.List("a"), 2)
}

func TestStore_InMemoryFallback(t *testing.T) {
	s := Open("")
	require.False(t, s.Persistent())

	s.Save(Message{SessionID: "x", Role: "user", Content: "hi"})
	s.Save(Message{SessionID: "y", Role: "user", Content: "ignored"})

	got := s.List("x")
	require.Len(t, got, 1)
	require.Equal(t, "hi", got[0].Content)
	require.Empty(t, s.List("missing"))
	require.NoError(t, s.Close())
}

func TestStore_UnwritablePath(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "missing-dir", "history.db"))
	require.False(t, s.Persistent())

	s.Save(Message{SessionID: "x", Content: "kept in memory"})
	require.Len(t, s.List("x"), 1)
}
