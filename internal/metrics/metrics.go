// Package metrics provides lightweight, lock-minimal counters for the
// desensitizer.
//
// Counters use sync/atomic so batch workers and API handlers incur no mutex
// contention. Latency statistics use a single mutex per dimension; they are
// updated at most once per document.
package metrics

import (
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"numeric-desensitizer/internal/textio"
)

// Metrics holds all runtime counters for one process.
// The zero value is usable but drops per-extension counts; use New().
type Metrics struct {
	// Document counters
	DocumentsDesensitized atomic.Int64
	DocumentsRestored     atomic.Int64

	// Numeric volume
	NumbersReplaced      atomic.Int64
	PlaceholdersRestored atomic.Int64

	// Error counters
	ErrorsRead    atomic.Int64
	ErrorsWrite   atomic.Int64
	ErrorsMapping atomic.Int64

	// Per-extension document counts.
	// The map is written only in New(); concurrent reads are safe without a lock.
	byExtension map[string]*atomic.Int64

	desMu   sync.Mutex
	desStat latencyStats

	resMu   sync.Mutex
	resStat latencyStats

	startTime time.Time
}

// New returns a new Metrics with the start time recorded and the extension
// map pre-populated for every default file extension.
func New() *Metrics {
	m := &Metrics{
		startTime:   time.Now(),
		byExtension: make(map[string]*atomic.Int64, len(textio.DefaultExtensions)),
	}
	for _, ext := range textio.DefaultExtensions {
		m.byExtension[ext] = new(atomic.Int64)
	}
	return m
}

// RecordExtension counts one processed document with extension ext.
// Unknown extensions are silently ignored.
func (m *Metrics) RecordExtension(ext string) {
	if c, ok := m.byExtension[strings.ToLower(ext)]; ok {
		c.Add(1)
	}
}

// RecordDesensitize records one desensitized document that replaced n numbers.
func (m *Metrics) RecordDesensitize(n int, d time.Duration) {
	m.DocumentsDesensitized.Add(1)
	m.NumbersReplaced.Add(int64(n))
	m.desMu.Lock()
	m.desStat.record(float64(d.Microseconds()) / 1000.0)
	m.desMu.Unlock()
}

// RecordRestore records one restored document in which n placeholders were found.
func (m *Metrics) RecordRestore(n int, d time.Duration) {
	m.DocumentsRestored.Add(1)
	m.PlaceholdersRestored.Add(int64(n))
	m.resMu.Lock()
	m.resStat.record(float64(d.Microseconds()) / 1000.0)
	m.resMu.Unlock()
}

// Snapshot returns a point-in-time copy of all metrics, safe for JSON encoding.
func (m *Metrics) Snapshot() Snapshot {
	m.desMu.Lock()
	des := m.desStat.snapshot()
	m.desMu.Unlock()

	m.resMu.Lock()
	res := m.resStat.snapshot()
	m.resMu.Unlock()

	byExt := make(map[string]int64, len(m.byExtension))
	for ext, c := range m.byExtension {
		if n := c.Load(); n > 0 {
			byExt[ext] = n
		}
	}

	var uptime float64
	if !m.startTime.IsZero() {
		uptime = time.Since(m.startTime).Seconds()
	}

	return Snapshot{
		Documents: DocumentSnapshot{
			Desensitized: m.DocumentsDesensitized.Load(),
			Restored:     m.DocumentsRestored.Load(),
			ByExtension:  byExt,
		},
		Numbers: NumberSnapshot{
			Replaced: m.NumbersReplaced.Load(),
			Restored: m.PlaceholdersRestored.Load(),
		},
		Errors: ErrorSnapshot{
			Read:    m.ErrorsRead.Load(),
			Write:   m.ErrorsWrite.Load(),
			Mapping: m.ErrorsMapping.Load(),
		},
		Latency: LatencyGroup{
			DesensitizeMs: des,
			RestoreMs:     res,
		},
		UptimeSecs: uptime,
	}
}

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Documents  DocumentSnapshot `json:"documents"`
	Numbers    NumberSnapshot   `json:"numbers"`
	Errors     ErrorSnapshot    `json:"errors"`
	Latency    LatencyGroup     `json:"latency"`
	UptimeSecs float64          `json:"uptimeSecs"`
}

// DocumentSnapshot holds document-level counters.
type DocumentSnapshot struct {
	Desensitized int64 `json:"desensitized"`
	Restored     int64 `json:"restored"`

	// Only extensions with non-zero counts appear.
	ByExtension map[string]int64 `json:"byExtension,omitempty"`
}

// NumberSnapshot holds numeric literal volume.
type NumberSnapshot struct {
	Replaced int64 `json:"replaced"`
	Restored int64 `json:"restored"`
}

// ErrorSnapshot holds error counters.
type ErrorSnapshot struct {
	Read    int64 `json:"read"`
	Write   int64 `json:"write"`
	Mapping int64 `json:"mapping"`
}

// LatencyGroup groups the two latency dimensions.
type LatencyGroup struct {
	DesensitizeMs LatencySnapshot `json:"desensitizeMs"`
	RestoreMs     LatencySnapshot `json:"restoreMs"`
}

// LatencySnapshot is a min/mean/max summary for one latency dimension.
type LatencySnapshot struct {
	Count  int64   `json:"count"`
	MinMs  float64 `json:"minMs"`
	MeanMs float64 `json:"meanMs"`
	MaxMs  float64 `json:"maxMs"`
}

type latencyStats struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

func (s *latencyStats) record(ms float64) {
	s.count++
	s.sum += ms
	if s.count == 1 || ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (s *latencyStats) snapshot() LatencySnapshot {
	if s.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count:  s.count,
		MinMs:  round2(s.min),
		MeanMs: round2(s.sum / float64(s.count)),
		MaxMs:  round2(s.max),
	}
}
