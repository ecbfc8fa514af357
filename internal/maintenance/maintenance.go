// Package maintenance implements the scheduled WAL retention/archive
// sweep: a background gocron job that seals off fully-applied sealed
// segments to cold storage and removes them from the live WAL directory,
// the way the teacher's internal/taskManager registers a daily
// gocron.DurationJob for job-archive retention.
package maintenance

import (
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/data-tracks/DataTracks/internal/wal"
	"github.com/data-tracks/DataTracks/pkg/log"
)

// EngineRef identifies one engine persister pool worker's durable cursor,
// the (engine_id, definition_id) pair keying internal/wal.OffsetStore.
type EngineRef struct {
	EngineID     uint16
	DefinitionID uint16
}

// Config tunes the retention sweep: how often it runs, how many of the
// most recent sealed segments are always kept regardless of apply
// progress, and where archived segments are written (empty disables
// archiving — sweep then only deletes).
type Config struct {
	IntervalMinutes int
	RetainSegments  int
	ArchiveDir      string
}

// Scheduler owns the gocron.Scheduler running the retention sweep against
// one WAL directory and offset store.
type Scheduler struct {
	sched   gocron.Scheduler
	walDir  string
	offsets *wal.OffsetStore
	engines []EngineRef
	cfg     Config
}

// New builds a Scheduler. walDir is $DATA_DIR/wal; offsets is the shared
// OffsetStore every engine worker acks through; engines lists every
// configured engine binding so the sweep's safe-to-remove threshold is
// the minimum applied_lsn across all of them.
func New(walDir string, offsets *wal.OffsetStore, engines []EngineRef, cfg Config) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	if cfg.RetainSegments <= 0 {
		cfg.RetainSegments = 1
	}
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = 15
	}
	return &Scheduler{sched: sched, walDir: walDir, offsets: offsets, engines: engines, cfg: cfg}, nil
}

// Start registers the recurring sweep and begins running it.
func (s *Scheduler) Start() error {
	interval := time.Duration(s.cfg.IntervalMinutes) * time.Minute
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweep),
	)
	if err != nil {
		return err
	}
	s.sched.Start()
	return nil
}

// Shutdown stops the scheduler, waiting for any in-flight sweep to finish.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// sweep removes sealed segments that are both outside the always-kept
// tail window and fully applied by every configured engine. Archiving
// happens before deletion so a crash mid-sweep never loses a segment that
// hasn't been copied to cold storage yet.
func (s *Scheduler) sweep() {
	segments, err := wal.SealedSegments(s.walDir)
	if err != nil {
		log.Warnf("maintenance: listing sealed segments: %v", err)
		return
	}
	if len(segments) <= s.cfg.RetainSegments {
		return
	}
	removable := segments[:len(segments)-s.cfg.RetainSegments]

	minApplied, ok := s.minAppliedLSN()
	if !ok {
		log.Info("maintenance: no engine has acked any record yet, skipping sweep")
		return
	}

	for _, path := range removable {
		maxLSN, err := wal.SegmentMaxLSN(path)
		if err != nil {
			log.Warnf("maintenance: reading max lsn of %s: %v", path, err)
			continue
		}
		if maxLSN > minApplied {
			break // segments are oldest-first; nothing later qualifies either
		}

		if s.cfg.ArchiveDir != "" {
			dst, err := wal.ArchiveSegment(path, s.cfg.ArchiveDir)
			if err != nil {
				log.Errorf("maintenance: archiving %s: %v", path, err)
				continue
			}
			log.Infof("maintenance: archived %s to %s", path, dst)
		}
		if err := os.Remove(path); err != nil {
			log.Errorf("maintenance: removing %s: %v", path, err)
			continue
		}
		log.Infof("maintenance: removed fully-applied segment %s", path)
	}
}

// minAppliedLSN returns the lowest applied_lsn across all configured
// engines, or ok=false if any engine has not acked anything yet (in which
// case nothing is safe to remove).
func (s *Scheduler) minAppliedLSN() (uint64, bool) {
	if len(s.engines) == 0 {
		return 0, false
	}
	var min uint64
	first := true
	for _, e := range s.engines {
		lsn, found, err := s.offsets.Get(e.EngineID, e.DefinitionID)
		if err != nil {
			log.Warnf("maintenance: reading applied_lsn for engine %d/%d: %v", e.EngineID, e.DefinitionID, err)
			return 0, false
		}
		if !found {
			return 0, false
		}
		if first || lsn < min {
			min = lsn
			first = false
		}
	}
	return min, true
}
