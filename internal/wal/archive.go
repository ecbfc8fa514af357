package wal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/linkedin/goavro/v2"
)

// recordSchema is the Avro schema for one archived WAL record. This is a
// read-only audit export and never participates in replay correctness —
// the segment files remain the sole durability source of truth.
const recordSchema = `{
	"type": "record",
	"name": "WalRecord",
	"fields": [
		{"name": "lsn", "type": "long"},
		{"name": "ts", "type": "long"},
		{"name": "station_id", "type": "long"},
		{"name": "payload", "type": "bytes"}
	]
}`

// ArchiveSegment snapshots every record in a sealed segment file to an
// Avro Object Container File at dstPath, mirroring the teacher's
// periodic "flush hot state to an Avro OCF file" checkpoint shape
// (internal/memorystore/avroCheckpoint.go), repurposed from per-metric
// checkpoints to per-segment WAL cold storage.
func ArchiveSegment(segmentPath, dstDir string) (string, error) {
	f, err := os.Open(segmentPath)
	if err != nil {
		return "", &ErrWalIoError{Path: segmentPath, Err: err}
	}
	defer f.Close()

	records, _, err := readSegment(f, segmentPath)
	if err != nil {
		if _, ok := err.(*ErrWalCorrupt); !ok {
			return "", err
		}
	}
	if len(records) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", &ErrWalIoError{Path: dstDir, Err: err}
	}
	dstPath := filepath.Join(dstDir, filepath.Base(segmentPath)+".avro")
	out, err := os.OpenFile(dstPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return "", &ErrWalIoError{Path: dstPath, Err: err}
	}
	defer out.Close()

	codec, err := goavro.NewCodec(recordSchema)
	if err != nil {
		return "", fmt.Errorf("wal: building avro codec: %w", err)
	}
	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               out,
		Codec:           codec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		return "", fmt.Errorf("wal: creating OCF writer: %w", err)
	}

	native := make([]interface{}, len(records))
	for i, r := range records {
		native[i] = map[string]interface{}{
			"lsn":        int64(r.LSN),
			"ts":         r.TS,
			"station_id": int64(r.StationID),
			"payload":    r.Payload,
		}
	}
	if err := writer.Append(native); err != nil {
		return "", fmt.Errorf("wal: appending avro records: %w", err)
	}
	return dstPath, nil
}
