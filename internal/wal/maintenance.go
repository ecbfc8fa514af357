package wal

import (
	"os"
)

// SealedSegments returns every sealed segment path under dir, oldest
// first, for the maintenance retention sweep (internal/maintenance). The
// active segment is never included: it is still being written to.
func SealedSegments(dir string) ([]string, error) {
	paths, err := sealedSegmentPaths(dir)
	if err != nil {
		return nil, &ErrWalIoError{Path: dir, Err: err}
	}
	return paths, nil
}

// SegmentMaxLSN returns the highest lsn recorded in the sealed segment at
// path. A trailing corrupt record is ignored; the max is taken over the
// well-formed prefix, matching recovery's own truncate-on-corruption
// behavior.
func SegmentMaxLSN(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &ErrWalIoError{Path: path, Err: err}
	}
	defer f.Close()

	records, _, err := readSegment(f, path)
	if err != nil {
		if _, ok := err.(*ErrWalCorrupt); !ok {
			return 0, err
		}
	}
	var max uint64
	for _, r := range records {
		if r.LSN > max {
			max = r.LSN
		}
	}
	return max, nil
}
