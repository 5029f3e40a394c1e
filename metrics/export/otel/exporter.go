package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// sessionSource is the part of *goAuthClient.Manager the exporter reads.
type sessionSource interface {
	MetricsSnapshot() goAuthClient.MetricsSnapshot
	AuditStats() goAuthClient.AuditStats
	IsAuthenticated() bool
	TimeUntilExpiry() time.Duration
}

type counterInstrument struct {
	id  goAuthClient.MetricID
	ins metric.Int64ObservableCounter
}

type latencyInstruments struct {
	id      goAuthClient.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	sum     metric.Float64ObservableGauge
}

// OTelExporter observes a Manager once per collection cycle.
type OTelExporter struct {
	source       sessionSource
	registration metric.Registration

	counters  []counterInstrument
	latencies []latencyInstruments
	// le label per raw bucket
	bucketAttrs []metric.ObserveOption

	authenticated metric.Int64ObservableGauge
	expiresIn     metric.Float64ObservableGauge

	auditEvents    metric.Int64ObservableCounter
	auditDelivered metric.ObserveOption
	auditDropped   metric.ObserveOption
	auditFailed    metric.ObserveOption
}

// NewOTelExporter registers the instruments on meter and observes manager.
func NewOTelExporter(meter metric.Meter, manager *goAuthClient.Manager) (*OTelExporter, error) {
	if manager == nil {
		return nil, ErrNilSource
	}
	return newExporter(meter, manager)
}

func newExporter(meter metric.Meter, source sessionSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:         source,
		auditDelivered: outcome("delivered"),
		auditDropped:   outcome("dropped"),
		auditFailed:    outcome("sink_failure"),
	}
	for _, le := range internaldefs.HistogramBounds {
		e.bucketAttrs = append(e.bucketAttrs, metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le))))
	}

	var observables []metric.Observable
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, ins: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		l, err := newLatencyInstruments(meter, def)
		if err != nil {
			return nil, err
		}
		e.latencies = append(e.latencies, l)
		observables = append(observables, l.buckets, l.count, l.sum)
	}

	var err error
	e.authenticated, err = meter.Int64ObservableGauge(internaldefs.SessionAuthenticatedName,
		metric.WithDescription("1 while a session is signed in, otherwise 0."))
	if err != nil {
		return nil, fmt.Errorf("create session gauge: %w", err)
	}
	e.expiresIn, err = meter.Float64ObservableGauge(internaldefs.SessionExpiresInName,
		metric.WithDescription("Remaining lifetime of the current credential."), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create expiry gauge: %w", err)
	}
	e.auditEvents, err = meter.Int64ObservableCounter(internaldefs.AuditEventsName,
		metric.WithDescription("Audit events by outcome: delivered, dropped or sink_failure."))
	if err != nil {
		return nil, fmt.Errorf("create audit counter: %w", err)
	}
	observables = append(observables, e.authenticated, e.expiresIn, e.auditEvents)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func newLatencyInstruments(meter metric.Meter, def internaldefs.HistogramDef) (latencyInstruments, error) {
	l := latencyInstruments{id: def.ID}
	var err error
	l.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket",
		metric.WithDescription(def.Help+" Cumulative count per le bound."))
	if err != nil {
		return l, fmt.Errorf("create %s_bucket: %w", def.Name, err)
	}
	l.count, err = meter.Int64ObservableGauge(def.Name+"_count",
		metric.WithDescription(def.Help+" Sample count."))
	if err != nil {
		return l, fmt.Errorf("create %s_count: %w", def.Name, err)
	}
	l.sum, err = meter.Float64ObservableGauge(def.Name+"_sum",
		metric.WithDescription(def.Help+" Sum of observations."), metric.WithUnit("s"))
	if err != nil {
		return l, fmt.Errorf("create %s_sum: %w", def.Name, err)
	}
	return l, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snapshot.Counters[c.id]))
	}

	for _, l := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[l.id]))
		for i, attrs := range e.bucketAttrs {
			o.ObserveInt64(l.buckets, int64(cumulative[i]), attrs)
		}
		o.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
		o.ObserveFloat64(l.sum, snapshot.HistogramSums[l.id].Seconds())
	}

	var signedIn int64
	if e.source.IsAuthenticated() {
		signedIn = 1
	}
	o.ObserveInt64(e.authenticated, signedIn)
	o.ObserveFloat64(e.expiresIn, e.source.TimeUntilExpiry().Seconds())

	audit := e.source.AuditStats()
	o.ObserveInt64(e.auditEvents, int64(audit.Delivered), e.auditDelivered)
	o.ObserveInt64(e.auditEvents, int64(audit.Dropped), e.auditDropped)
	o.ObserveInt64(e.auditEvents, int64(audit.SinkFailures), e.auditFailed)
	return nil
}

func outcome(v string) metric.ObserveOption {
	return metric.WithAttributeSet(attribute.NewSet(attribute.String("outcome", v)))
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
