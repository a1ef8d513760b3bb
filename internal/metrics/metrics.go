package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BridgeCounters is a snapshot of the orchestrator's lifetime counters.
type BridgeCounters struct {
	TurboHits   uint64
	TurboMisses uint64
	TurboErrors uint64

	FreshOK      uint64
	FreshPartial uint64
	FreshFailed  uint64
	TurboOK      uint64
	TurboFailed  uint64

	BrowserMoved  uint64
	BrowserFailed uint64
	LeadMoved     uint64
	LeadFailed    uint64
	FallbackDials uint64

	InviteeDialsOK     uint64
	InviteeDialsFailed uint64
}

// BridgeCountersProvider exposes the orchestrator's counters.
type BridgeCountersProvider interface {
	BridgeCounters() BridgeCounters
}

// JournalCounter returns the number of rows in one journal table.
type JournalCounter interface {
	Count(ctx context.Context) (int64, error)
}

// EventCounter additionally breaks the call event journal down by status.
type EventCounter interface {
	JournalCounter
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// Collector is a prometheus.Collector that gathers BargePoint metrics at scrape time.
type Collector struct {
	bridge    BridgeCountersProvider
	attempts  JournalCounter
	events    EventCounter
	startTime time.Time

	// Metric descriptors.
	attemptsDesc     *prometheus.Desc
	redirectsDesc    *prometheus.Desc
	fallbacksDesc    *prometheus.Desc
	inviteeDialsDesc *prometheus.Desc
	turboLookupsDesc *prometheus.Desc
	callEventsDesc   *prometheus.Desc
	journalRowsDesc  *prometheus.Desc
	uptimeDesc       *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if unavailable.
func NewCollector(
	bridge BridgeCountersProvider,
	attempts JournalCounter,
	events EventCounter,
	startTime time.Time,
) *Collector {
	return &Collector{
		bridge:    bridge,
		attempts:  attempts,
		events:    events,
		startTime: startTime,

		attemptsDesc: prometheus.NewDesc(
			"bargepoint_bridge_attempts_total",
			"Total bridge attempts by mode and outcome",
			[]string{"mode", "outcome"}, nil,
		),
		redirectsDesc: prometheus.NewDesc(
			"bargepoint_leg_redirects_total",
			"Total leg redirects by role and outcome",
			[]string{"role", "outcome"}, nil,
		),
		fallbacksDesc: prometheus.NewDesc(
			"bargepoint_participant_fallbacks_total",
			"Total lead legs re-dialed into a conference after a failed redirect",
			nil, nil,
		),
		inviteeDialsDesc: prometheus.NewDesc(
			"bargepoint_invitee_dials_total",
			"Total invitee dial attempts by outcome",
			[]string{"outcome"}, nil,
		),
		turboLookupsDesc: prometheus.NewDesc(
			"bargepoint_turbo_lookups_total",
			"Total turbo session registry lookups by result",
			[]string{"result"}, nil,
		),
		callEventsDesc: prometheus.NewDesc(
			"bargepoint_call_events_total",
			"Total provider status callbacks received by call status",
			[]string{"status"}, nil,
		),
		journalRowsDesc: prometheus.NewDesc(
			"bargepoint_journal_rows",
			"Rows in the journal database by table",
			[]string{"table"}, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"bargepoint_uptime_seconds",
			"Seconds since the BargePoint process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.attemptsDesc
	ch <- c.redirectsDesc
	ch <- c.fallbacksDesc
	ch <- c.inviteeDialsDesc
	ch <- c.turboLookupsDesc
	ch <- c.callEventsDesc
	ch <- c.journalRowsDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.bridge != nil {
		b := c.bridge.BridgeCounters()

		counter := func(desc *prometheus.Desc, value uint64, labels ...string) {
			ch <- prometheus.MustNewConstMetric(
				desc, prometheus.CounterValue, float64(value), labels...,
			)
		}

		counter(c.attemptsDesc, b.FreshOK, "fresh", "ok")
		counter(c.attemptsDesc, b.FreshPartial, "fresh", "partial")
		counter(c.attemptsDesc, b.FreshFailed, "fresh", "failed")
		counter(c.attemptsDesc, b.TurboOK, "turbo", "ok")
		counter(c.attemptsDesc, b.TurboFailed, "turbo", "failed")

		counter(c.redirectsDesc, b.BrowserMoved, "browser", "moved")
		counter(c.redirectsDesc, b.BrowserFailed, "browser", "failed")
		counter(c.redirectsDesc, b.LeadMoved, "lead", "moved")
		counter(c.redirectsDesc, b.LeadFailed, "lead", "failed")

		counter(c.fallbacksDesc, b.FallbackDials)

		counter(c.inviteeDialsDesc, b.InviteeDialsOK, "ok")
		counter(c.inviteeDialsDesc, b.InviteeDialsFailed, "failed")

		counter(c.turboLookupsDesc, b.TurboHits, "hit")
		counter(c.turboLookupsDesc, b.TurboMisses, "miss")
		counter(c.turboLookupsDesc, b.TurboErrors, "error")
	}

	// Call event totals by status.
	if c.events != nil {
		statuses, err := c.events.CountByStatus(ctx)
		if err != nil {
			slog.Error("metrics: failed to count call events by status", "error", err)
		} else {
			for status, count := range statuses {
				ch <- prometheus.MustNewConstMetric(
					c.callEventsDesc, prometheus.CounterValue,
					float64(count), status,
				)
			}
		}
	}

	// Journal table sizes.
	for _, j := range []struct {
		counter JournalCounter
		table   string
	}{
		{c.attempts, "bridge_attempts"},
		{c.events, "call_events"},
	} {
		if j.counter == nil {
			continue
		}
		count, err := j.counter.Count(ctx)
		if err != nil {
			slog.Error("metrics: failed to count journal rows", "table", j.table, "error", err)
			continue
		}
		ch <- prometheus.MustNewConstMetric(
			c.journalRowsDesc, prometheus.GaugeValue,
			float64(count), j.table,
		)
	}

	// Uptime.
	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
