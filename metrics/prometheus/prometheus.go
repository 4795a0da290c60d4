// Package prometheus exports metrics recorded through metrics.Client to a Prometheus registry.
package prometheus

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cschleiden/go-approvals/metrics"
	promclient "github.com/prometheus/client_golang/prometheus"
)

type kind int

const (
	counterKind kind = iota
	histogramKind
	gaugeKind
	timingKind
)

type collectors struct {
	mu         sync.Mutex
	reg        promclient.Registerer
	counters   map[string]*promclient.CounterVec
	histograms map[string]*promclient.HistogramVec
	gauges     map[string]*promclient.GaugeVec
	errHandler func(error)
}

type Client struct {
	c    *collectors
	tags metrics.Tags
}

var _ metrics.Client = (*Client)(nil)

// New returns a metrics client registering its collectors lazily with reg. Names are converted to
// Prometheus conventions: dots become underscores, counters get a _total and timings a _seconds
// suffix. Registration failures, for example conflicting label sets for a name, are passed to onError
// and the sample is dropped.
func New(reg promclient.Registerer, onError func(error)) *Client {
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}

	if onError == nil {
		onError = func(error) {}
	}

	return &Client{
		c: &collectors{
			reg:        reg,
			counters:   map[string]*promclient.CounterVec{},
			histograms: map[string]*promclient.HistogramVec{},
			gauges:     map[string]*promclient.GaugeVec{},
			errHandler: onError,
		},
		tags: metrics.Tags{},
	}
}

func (c *Client) Counter(name string, tags metrics.Tags, value int64) {
	labels := c.merge(tags)
	if v := c.c.counter(metricName(name, counterKind), labels); v != nil {
		v.With(labels).Add(float64(value))
	}
}

func (c *Client) Distribution(name string, tags metrics.Tags, value float64) {
	labels := c.merge(tags)
	if v := c.c.histogram(metricName(name, histogramKind), labels); v != nil {
		v.With(labels).Observe(value)
	}
}

func (c *Client) Gauge(name string, tags metrics.Tags, value int64) {
	labels := c.merge(tags)
	if v := c.c.gauge(metricName(name, gaugeKind), labels); v != nil {
		v.With(labels).Set(float64(value))
	}
}

func (c *Client) Timing(name string, tags metrics.Tags, duration time.Duration) {
	labels := c.merge(tags)
	if v := c.c.histogram(metricName(name, timingKind), labels); v != nil {
		v.With(labels).Observe(duration.Seconds())
	}
}

func (c *Client) WithTags(tags metrics.Tags) metrics.Client {
	return &Client{
		c:    c.c,
		tags: c.merge(tags),
	}
}

func (c *Client) merge(tags metrics.Tags) promclient.Labels {
	labels := promclient.Labels{}
	for k, v := range c.tags {
		labels[labelName(k)] = v
	}

	for k, v := range tags {
		labels[labelName(k)] = v
	}

	return labels
}

func (cs *collectors) counter(name string, labels promclient.Labels) *promclient.CounterVec {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	key := vecKey(name, labels)
	if v, ok := cs.counters[key]; ok {
		return v
	}

	v := promclient.NewCounterVec(promclient.CounterOpts{Name: name, Help: help(name)}, labelNames(labels))
	if err := cs.reg.Register(v); err != nil {
		var are promclient.AlreadyRegisteredError
		if !errors.As(err, &are) {
			cs.errHandler(err)
			return nil
		}

		existing, ok := are.ExistingCollector.(*promclient.CounterVec)
		if !ok {
			cs.errHandler(err)
			return nil
		}

		v = existing
	}

	cs.counters[key] = v

	return v
}

func (cs *collectors) histogram(name string, labels promclient.Labels) *promclient.HistogramVec {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	key := vecKey(name, labels)
	if v, ok := cs.histograms[key]; ok {
		return v
	}

	v := promclient.NewHistogramVec(promclient.HistogramOpts{
		Name:    name,
		Help:    help(name),
		Buckets: promclient.DefBuckets,
	}, labelNames(labels))
	if err := cs.reg.Register(v); err != nil {
		var are promclient.AlreadyRegisteredError
		if !errors.As(err, &are) {
			cs.errHandler(err)
			return nil
		}

		existing, ok := are.ExistingCollector.(*promclient.HistogramVec)
		if !ok {
			cs.errHandler(err)
			return nil
		}

		v = existing
	}

	cs.histograms[key] = v

	return v
}

func (cs *collectors) gauge(name string, labels promclient.Labels) *promclient.GaugeVec {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	key := vecKey(name, labels)
	if v, ok := cs.gauges[key]; ok {
		return v
	}

	v := promclient.NewGaugeVec(promclient.GaugeOpts{Name: name, Help: help(name)}, labelNames(labels))
	if err := cs.reg.Register(v); err != nil {
		var are promclient.AlreadyRegisteredError
		if !errors.As(err, &are) {
			cs.errHandler(err)
			return nil
		}

		existing, ok := are.ExistingCollector.(*promclient.GaugeVec)
		if !ok {
			cs.errHandler(err)
			return nil
		}

		v = existing
	}

	cs.gauges[key] = v

	return v
}

func metricName(name string, k kind) string {
	n := sanitize(name)

	switch k {
	case counterKind:
		if !strings.HasSuffix(n, "_total") {
			n += "_total"
		}
	case timingKind:
		n = strings.TrimSuffix(n, "_duration") + "_duration_seconds"
	}

	return n
}

func labelName(tag string) string {
	return sanitize(tag)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}

		return '_'
	}, s)
}

func labelNames(labels promclient.Labels) []string {
	return slices.Sorted(maps.Keys(labels))
}

func vecKey(name string, labels promclient.Labels) string {
	return name + "{" + strings.Join(labelNames(labels), ",") + "}"
}

func help(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
