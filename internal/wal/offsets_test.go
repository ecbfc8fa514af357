package wal_test

import (
	"path/filepath"
	"testing"

	"github.com/data-tracks/DataTracks/internal/wal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetStoreGetMissingReturnsNotOK(t *testing.T) {
	dir := t.TempDir()
	s, err := wal.OpenOffsetStore(filepath.Join(dir, "offsets.db"))
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get(1, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOffsetStoreAckThenGetRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := wal.OpenOffsetStore(filepath.Join(dir, "offsets.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ack(1, 2, 42))
	lsn, ok, err := s.Get(1, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(42), lsn)
}

func TestOffsetStoreAckOverwritesPreviousCursor(t *testing.T) {
	dir := t.TempDir()
	s, err := wal.OpenOffsetStore(filepath.Join(dir, "offsets.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ack(1, 2, 10))
	require.NoError(t, s.Ack(1, 2, 20))
	lsn, ok, err := s.Get(1, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(20), lsn)
}
