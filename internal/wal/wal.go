package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	segmentFileGlob = "*.seg"
	activeFileName  = "active.seg"
)

// sealedSegmentPaths globs dir for sealed segments, oldest first, excluding
// the active segment: segmentFileGlob matches active.seg too, since it
// shares the .seg suffix, so every caller needs this filter rather than the
// bare glob.
func sealedSegmentPaths(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, segmentFileGlob))
	if err != nil {
		return nil, err
	}
	active := filepath.Join(dir, activeFileName)
	out := paths[:0]
	for _, p := range paths {
		if p != active {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// WAL is the append-only log: one active segment (single writer, fsync'd
// on batch commit) plus zero or more sealed segments, addressed by
// monotonically increasing lsn. Exactly one WAL exists per process, shared
// by every running plan; it is the sole owner of the active-segment write lock (spec.md §5).
type WAL struct {
	dir         string
	maxSegBytes int64

	mu         sync.Mutex
	activeFile *os.File
	activeSize int64
	nextLSN    uint64
	sealedSeq  uint32 // next sealed segment sequence number

	delay *delayRing
}

// Open opens (creating if necessary) the WAL rooted at dir (spec.md §6:
// `$DATA_DIR/wal/`), replaying the active segment to recover nextLSN and
// populate the delay ring. maxSegBytes bounds when the active segment is
// sealed; delayRingSize is the size K of the in-memory replay ring.
func Open(dir string, maxSegBytes int64, delayRingSize int) (*WAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &ErrWalIoError{Path: dir, Err: err}
	}
	w := &WAL{
		dir:         dir,
		maxSegBytes: maxSegBytes,
		delay:       newDelayRing(delayRingSize),
	}

	sealed, err := sealedSegmentPaths(dir)
	if err != nil {
		return nil, &ErrWalIoError{Path: dir, Err: err}
	}
	w.sealedSeq = uint32(len(sealed))
	if n := len(sealed); n > 0 {
		// Sealed segments may have been swept away, so continue numbering
		// and lsn assignment after the newest remaining sealed segment.
		last := sealed[n-1]
		var seq uint32
		if _, err := fmt.Sscanf(filepath.Base(last), "%08d.seg", &seq); err == nil && seq+1 > w.sealedSeq {
			w.sealedSeq = seq + 1
		}
		maxLSN, err := SegmentMaxLSN(last)
		if err != nil {
			return nil, err
		}
		w.nextLSN = maxLSN + 1
	}

	activePath := filepath.Join(dir, activeFileName)
	if _, err := os.Stat(activePath); err == nil {
		if err := w.recoverActive(activePath); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(activePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &ErrWalIoError{Path: activePath, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		return nil, &ErrWalIoError{Path: activePath, Err: err}
	}
	w.activeFile = f
	w.activeSize = info.Size()
	return w, nil
}

// recoverActive replays the active segment to establish nextLSN, seeds the
// delay ring, and truncates trailing corruption per WalCorrupt recovery.
func (w *WAL) recoverActive(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &ErrWalIoError{Path: path, Err: err}
	}
	defer f.Close()

	records, goodOffset, err := readSegment(f, path)
	for _, r := range records {
		if r.LSN+1 > w.nextLSN {
			w.nextLSN = r.LSN + 1
		}
		w.delay.push(r)
	}
	if _, corrupt := err.(*ErrWalCorrupt); corrupt {
		if terr := truncateToLastGood(path, goodOffset); terr != nil {
			return terr
		}
		return nil // recovered: truncated, replay proceeds with the good prefix
	}
	return err
}

// Append assigns the next lsn, writes the record to the active segment and
// fsyncs before returning, per spec.md's append contract. Fails with
// *ErrWalIoError on I/O failure — callers (the station/persister path) must
// treat this as backpressure upstream.
func (w *WAL) Append(stationID uint32, ts int64, payload []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	lsn := w.nextLSN
	rec := Record{LSN: lsn, TS: ts, StationID: stationID, Payload: payload}
	frame := encodeRecord(rec)

	if _, err := w.activeFile.Write(frame); err != nil {
		return 0, &ErrWalIoError{Path: w.activeFile.Name(), Err: err}
	}
	if err := w.activeFile.Sync(); err != nil {
		return 0, &ErrWalIoError{Path: w.activeFile.Name(), Err: err}
	}
	w.activeSize += int64(len(frame))
	w.nextLSN++
	w.delay.push(rec)

	if w.maxSegBytes > 0 && w.activeSize >= w.maxSegBytes {
		if err := w.seal(); err != nil {
			return lsn, err
		}
	}
	return lsn, nil
}

// seal closes the active segment under a new sealed name and opens a fresh
// active segment. Caller must hold w.mu.
func (w *WAL) seal() error {
	if err := w.activeFile.Close(); err != nil {
		return &ErrWalIoError{Path: w.activeFile.Name(), Err: err}
	}
	sealedPath := filepath.Join(w.dir, fmt.Sprintf("%08d.seg", w.sealedSeq))
	activePath := filepath.Join(w.dir, activeFileName)
	if err := os.Rename(activePath, sealedPath); err != nil {
		return &ErrWalIoError{Path: activePath, Err: err}
	}
	w.sealedSeq++

	f, err := os.OpenFile(activePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return &ErrWalIoError{Path: activePath, Err: err}
	}
	w.activeFile = f
	w.activeSize = 0
	return nil
}

// Scan returns every record with lsn >= fromLSN, checking the delay ring
// first and falling back to a full segment scan when the engine has
// lagged beyond the ring (spec.md §4.7's WAL-Delay fallback).
func (w *WAL) Scan(fromLSN uint64) ([]Record, error) {
	if recs, ok := w.delay.since(fromLSN); ok {
		return recs, nil
	}
	return w.scanSegments(fromLSN)
}

// DelayedCount reports the current size of the in-memory delay ring, for
// the `WAL Delayed <definition_id>` telemetry metric (sampled per-engine by
// the caller alongside its own definition_id).
func (w *WAL) DelayedCount() int { return w.delay.len() }

func (w *WAL) scanSegments(fromLSN uint64) ([]Record, error) {
	paths, err := sealedSegmentPaths(w.dir)
	if err != nil {
		return nil, &ErrWalIoError{Path: w.dir, Err: err}
	}
	paths = append(paths, filepath.Join(w.dir, activeFileName))

	var out []Record
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &ErrWalIoError{Path: p, Err: err}
		}
		records, _, rerr := readSegment(f, p)
		f.Close()
		for _, r := range records {
			if r.LSN >= fromLSN {
				out = append(out, r)
			}
		}
		if rerr != nil {
			if _, ok := rerr.(*ErrWalCorrupt); !ok {
				return out, rerr
			}
		}
	}
	return out, nil
}

// Close seals the active segment's data to disk without renaming it (the
// active segment stays active across restarts), used on graceful shutdown.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.activeFile.Sync(); err != nil {
		return &ErrWalIoError{Path: w.activeFile.Name(), Err: err}
	}
	return w.activeFile.Close()
}
