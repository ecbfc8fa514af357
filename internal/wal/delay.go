package wal

import "sync"

// delayRing is a bounded in-memory ring of the K most recently appended
// records, letting a newly-connected or lagging engine replay recent
// history without rereading segment files (spec.md §4.7's WAL-Delay).
type delayRing struct {
	mu   sync.Mutex
	buf  []Record
	size int
	head int // index of the oldest record
	n    int // number of records currently held
}

func newDelayRing(size int) *delayRing {
	if size <= 0 {
		size = 1
	}
	return &delayRing{buf: make([]Record, size), size: size}
}

func (d *delayRing) push(r Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := (d.head + d.n) % d.size
	if d.n < d.size {
		d.buf[idx] = r
		d.n++
	} else {
		d.buf[d.head] = r
		d.head = (d.head + 1) % d.size
	}
}

func (d *delayRing) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

// since returns every buffered record with lsn >= fromLSN, in ascending
// order, and true if the ring actually covers fromLSN (the oldest buffered
// record's lsn is <= fromLSN, or the ring is empty and fromLSN is the next
// lsn to be written). false means the caller lagged beyond the ring and
// must fall back to a segment scan.
func (d *delayRing) since(fromLSN uint64) ([]Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.n == 0 {
		return nil, true
	}
	oldest := d.buf[d.head].LSN
	if fromLSN < oldest {
		return nil, false
	}
	out := make([]Record, 0, d.n)
	for i := 0; i < d.n; i++ {
		r := d.buf[(d.head+i)%d.size]
		if r.LSN >= fromLSN {
			out = append(out, r)
		}
	}
	return out, true
}
