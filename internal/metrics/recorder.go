package metrics

import (
	"sync"
	"time"

	m "github.com/cschleiden/go-approvals/metrics"
)

// Recorder is an in-memory metrics client that keeps counter totals. Used in tests.
type Recorder struct {
	mu       sync.Mutex
	counters map[string]int64
	timings  map[string]int
}

func NewRecorder() *Recorder {
	return &Recorder{
		counters: map[string]int64{},
		timings:  map[string]int{},
	}
}

var _ m.Client = (*Recorder)(nil)

func (r *Recorder) Counter(name string, tags m.Tags, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters[name] += value
}

func (r *Recorder) Distribution(name string, tags m.Tags, value float64) {
}

func (r *Recorder) Gauge(name string, tags m.Tags, value int64) {
}

func (r *Recorder) Timing(name string, tags m.Tags, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.timings[name]++
}

func (r *Recorder) WithTags(tags m.Tags) m.Client {
	return r
}

func (r *Recorder) CounterValue(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.counters[name]
}

func (r *Recorder) TimingCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.timings[name]
}
