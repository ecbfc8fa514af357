// Package deadletter implements the engine persister pool's poison-train
// sink (spec.md §4.8: a fatal Apply error routes its train here and still
// acks). One append-only file per engine id under $DATA_DIR/deadletter;
// each record is a length-prefixed reason followed by a length-prefixed
// train.Encode payload (no lsn or crc header, unlike internal/wal segment
// records), so tools/dlq-inspect can decode them with the same Value codec.
package deadletter

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/data-tracks/DataTracks/internal/train"
)

// Record is one poisoned train as stored in a .dlq file.
type Record struct {
	EngineID uint16
	Reason   string
	Train    *train.Train
}

// Sink is the engine.DeadLetterSink wired into internal/engine.NewPool.
type Sink struct {
	mu   sync.Mutex
	dir  string
	open map[uint16]*os.File
}

// NewSink creates dir if needed and returns a Sink writing into it.
func NewSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("deadletter: creating %s: %w", dir, err)
	}
	return &Sink{dir: dir, open: make(map[uint16]*os.File)}, nil
}

func (s *Sink) fileFor(engineID uint16) (*os.File, error) {
	if f, ok := s.open[engineID]; ok {
		return f, nil
	}
	path := filepath.Join(s.dir, fmt.Sprintf("engine-%d.dlq", engineID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("deadletter: opening %s: %w", path, err)
	}
	s.open[engineID] = f
	return f, nil
}

// RouteDeadLetter appends t to engineID's poison file. Open and write
// failures are dropped silently, not returned or logged: losing a
// dead-letter record must never stall the persister pool.
func (s *Sink) RouteDeadLetter(engineID uint16, t *train.Train, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fileFor(engineID)
	if err != nil {
		return
	}
	_, _ = f.Write(encodeRecord(Record{EngineID: engineID, Reason: reason, Train: t}))
}

// Close closes every open poison file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, f := range s.open {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// encodeRecord frames one poisoned train as `u32 reasonLen | reason |
// u32 payloadLen | payload(train.Encode)`.
func encodeRecord(r Record) []byte {
	reason := []byte(r.Reason)
	payload := train.Encode(r.Train)

	buf := make([]byte, 4+len(reason)+4+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(reason)))
	copy(buf[4:], reason)
	off := 4 + len(reason)
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(payload)))
	copy(buf[off+4:], payload)
	return buf
}

// ReadAll reads every record from a .dlq file at path, for
// tools/dlq-inspect. It stops at the first truncated/malformed frame
// rather than failing the whole read, mirroring the WAL's
// truncate-on-corruption recovery stance.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("deadletter: opening %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			break
		}
		reasonLen := binary.LittleEndian.Uint32(lenBuf[:])
		reason := make([]byte, reasonLen)
		if _, err := io.ReadFull(f, reason); err != nil {
			break
		}
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			break
		}
		payloadLen := binary.LittleEndian.Uint32(lenBuf[:])
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(f, payload); err != nil {
			break
		}
		t, err := train.Decode(payload)
		if err != nil {
			break
		}
		records = append(records, Record{Reason: string(reason), Train: t})
	}
	return records, nil
}
