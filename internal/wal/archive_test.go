package wal_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/data-tracks/DataTracks/internal/wal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveSegmentWritesOCFFile(t *testing.T) {
	dir := t.TempDir()
	walDir := filepath.Join(dir, "wal")
	w, err := wal.Open(walDir, 1, 8) // tiny max size forces an immediate seal
	require.NoError(t, err)
	_, err = w.Append(1, 1, []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	sealed := filepath.Join(walDir, "00000000.seg")
	_, err = os.Stat(sealed)
	require.NoError(t, err)

	archiveDir := filepath.Join(dir, "archive")
	dst, err := wal.ArchiveSegment(sealed, archiveDir)
	require.NoError(t, err)
	require.NotEmpty(t, dst)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestArchiveSegmentEmptyFileReturnsEmptyPath(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.seg")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	dst, err := wal.ArchiveSegment(empty, filepath.Join(dir, "archive"))
	require.NoError(t, err)
	assert.Empty(t, dst)
}
