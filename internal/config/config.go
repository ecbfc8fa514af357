// Package config loads and validates the JSON startup configuration: data
// directory, WAL tuning, engine bindings, and maintenance schedule.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/data-tracks/DataTracks/internal/engine"
)

// WALConfig tunes internal/wal.Open's segment size and delay-ring depth.
type WALConfig struct {
	MaxSegmentBytes int64 `json:"max_segment_bytes"`
	DelayRingSize   int   `json:"delay_ring_size"`
}

// EngineBinding is one engine persister pool binding read from config,
// spec.md §3's `{engine_id, definition_id, kind, config}`.
type EngineBinding struct {
	EngineID     uint16          `json:"engine_id"`
	DefinitionID uint16          `json:"definition_id"`
	Kind         engine.Kind     `json:"kind"`
	Config       json.RawMessage `json:"config"`
}

// MaintenanceConfig tunes the scheduled WAL retention/archive sweep
// (internal/maintenance).
type MaintenanceConfig struct {
	RetentionIntervalMinutes int    `json:"retention_interval_minutes"`
	RetainSegments           int    `json:"retain_segments"`
	ArchiveDir               string `json:"archive_dir"`
}

// Config is the process-wide configuration loaded from the startup JSON
// file (spec.md §6's `$DATA_DIR` layout plus the engine bindings and
// maintenance schedule this repo's ambient stack adds).
type Config struct {
	DataDir        string            `json:"data_dir"`
	Addr           string            `json:"addr"`
	PlanFile       string            `json:"plan_file"`
	DrainTimeoutMs int               `json:"drain_timeout_ms"`
	WAL            WALConfig         `json:"wal"`
	Engines        []EngineBinding   `json:"engines"`
	Maintenance    MaintenanceConfig `json:"maintenance"`
}

// Keys is the process-wide configuration, set once by Init and read
// thereafter — the same global-config idiom the teacher uses for
// config.Keys.
var Keys = Config{
	Addr:           "0.0.0.0:8080",
	DrainTimeoutMs: 5000,
	WAL: WALConfig{
		MaxSegmentBytes: 64 * 1024 * 1024,
		DelayRingSize:   4096,
	},
	Maintenance: MaintenanceConfig{
		RetentionIntervalMinutes: 15,
		RetainSegments:           8,
	},
}

// Init reads, schema-validates, and decodes the config file at path into
// Keys. A malformed or schema-invalid file is a bad-config condition
// (spec.md §6 exit code 2); Init returns the error rather than exiting so
// cmd/datatracks can choose the exit code.
func Init(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := Validate(configSchema, raw); err != nil {
		return fmt.Errorf("config: validate %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var parsed Config
	if err := dec.Decode(&parsed); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	if parsed.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}

	merged := Keys
	merged.DataDir = parsed.DataDir
	if parsed.Addr != "" {
		merged.Addr = parsed.Addr
	}
	if parsed.PlanFile != "" {
		merged.PlanFile = parsed.PlanFile
	}
	if parsed.DrainTimeoutMs > 0 {
		merged.DrainTimeoutMs = parsed.DrainTimeoutMs
	}
	if parsed.WAL.MaxSegmentBytes > 0 {
		merged.WAL.MaxSegmentBytes = parsed.WAL.MaxSegmentBytes
	}
	if parsed.WAL.DelayRingSize > 0 {
		merged.WAL.DelayRingSize = parsed.WAL.DelayRingSize
	}
	if parsed.Maintenance.RetentionIntervalMinutes > 0 {
		merged.Maintenance.RetentionIntervalMinutes = parsed.Maintenance.RetentionIntervalMinutes
	}
	if parsed.Maintenance.RetainSegments > 0 {
		merged.Maintenance.RetainSegments = parsed.Maintenance.RetainSegments
	}
	merged.Maintenance.ArchiveDir = parsed.Maintenance.ArchiveDir
	merged.Engines = parsed.Engines

	Keys = merged
	return nil
}
