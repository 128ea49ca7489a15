package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_EmptyMarker(t *testing.T) {
	s := openTestStore(t)

	_, playing, err := s.LastPlayingAt()
	require.NoError(t, err)
	assert.False(t, playing)
}

func TestStore_MarkPlayingRoundTrip(t *testing.T) {
	s := openTestStore(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.MarkPlaying(at))

	got, playing, err := s.LastPlayingAt()
	require.NoError(t, err)
	assert.True(t, playing)
	assert.True(t, got.Equal(at))
}

func TestStore_StopClearsMarker(t *testing.T) {
	s := openTestStore(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.MarkPlaying(at))
	require.NoError(t, s.MarkStopped(at.Add(time.Hour)))

	_, playing, err := s.LastPlayingAt()
	require.NoError(t, err)
	assert.False(t, playing)
}

func TestStore_MarkerIsSingleRow(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.MarkPlaying(base))
	require.NoError(t, s.MarkPlaying(base.Add(time.Minute)))
	require.NoError(t, s.MarkPlaying(base.Add(2*time.Minute)))

	got, playing, err := s.LastPlayingAt()
	require.NoError(t, err)
	assert.True(t, playing)
	assert.True(t, got.Equal(base.Add(2*time.Minute)))
}

func TestStore_History(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.MarkPlaying(base))
	require.NoError(t, s.MarkStopped(base.Add(time.Hour)))
	require.NoError(t, s.MarkPlaying(base.Add(2*time.Hour)))

	history, err := s.History(2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "started", history[0].Event)
	assert.Equal(t, "stopped", history[1].Event)
}
