package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rf24mqtt/rf24mqtt/internal/gateway"
	"github.com/rf24mqtt/rf24mqtt/internal/process"
)

const metricsNamespace = "rf24mqtt"

// gatewayStates are the values of the state label.
var gatewayStates = []string{
	gateway.StateInit.String(),
	gateway.StateConnecting.String(),
	gateway.StateRunning.String(),
	gateway.StateShutdown.String(),
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(gateway.Stats) int64
}

// gatewayCollector reads the gateway's counters at scrape time, so the
// loop never touches Prometheus types.
type gatewayCollector struct {
	gateway GatewayStatus
	radio   RadioStatus

	state    *prometheus.Desc
	healthy  *prometheus.Desc
	frames   *prometheus.Desc
	gauges   []counterDesc
	counters []counterDesc
	radioUp  *prometheus.Desc
}

func newGatewayCollector(gw GatewayStatus, radio RadioStatus) *gatewayCollector {
	name := func(n string) string { return prometheus.BuildFQName(metricsNamespace, "", n) }
	counter := func(n, help string, value func(gateway.Stats) int64) counterDesc {
		return counterDesc{desc: prometheus.NewDesc(name(n), help, nil, nil), value: value}
	}

	return &gatewayCollector{
		gateway: gw,
		radio:   radio,
		state:   prometheus.NewDesc(name("state"), "Gateway loop state, 1 for the current one.", []string{"state"}, nil),
		healthy: prometheus.NewDesc(name("healthy"), "1 while running with a broker session.", nil, nil),
		frames: prometheus.NewDesc(name("frames_total"),
			"Inbound frames by translation outcome.", []string{"outcome"}, nil),
		radioUp: prometheus.NewDesc(name("radio_up"), "1 while RF24Node is running.", nil, nil),
		gauges: []counterDesc{
			counter("inbox_length", "Broker messages waiting for the loop.",
				func(s gateway.Stats) int64 { return int64(s.InboxLength) }),
			counter("filter_entries", "Topics held by the duplicate filter.",
				func(s gateway.Stats) int64 { return s.FilterEntries }),
			counter("devices", "Routed devices.",
				func(s gateway.Stats) int64 { return int64(s.Devices) }),
		},
		counters: []counterDesc{
			counter("broker_connects_total", "Successful broker connects.",
				func(s gateway.Stats) int64 { return s.BrokerConnects }),
			counter("broker_connect_failures_total", "Failed broker connect attempts.",
				func(s gateway.Stats) int64 { return s.BrokerConnectFailures }),
			counter("broker_disconnects_total", "Broker sessions lost while running.",
				func(s gateway.Stats) int64 { return s.BrokerDisconnects }),
			counter("subscribe_failures_total", "Failed attempts to subscribe to the IPC and control topics.",
				func(s gateway.Stats) int64 { return s.SubscribeFailures }),
			counter("radio_lines_total", "Lines read from RF24Node.",
				func(s gateway.Stats) int64 { return s.RadioFrames }),
			counter("radio_lines_dropped_total", "Lines dropped while the broker was down.",
				func(s gateway.Stats) int64 { return s.DroppedFrames }),
			counter("broker_messages_total", "Messages received from the broker.",
				func(s gateway.Stats) int64 { return s.BrokerMessages }),
			counter("inbox_dropped_total", "Broker messages dropped on a full inbox.",
				func(s gateway.Stats) int64 { return s.InboxDropped }),
			counter("published_total", "Successful publishes.",
				func(s gateway.Stats) int64 { return s.Published }),
			counter("publish_errors_total", "Failed publishes.",
				func(s gateway.Stats) int64 { return s.PublishErrors }),
			counter("commands_total", "Control messages relayed to the radio.",
				func(s gateway.Stats) int64 { return s.Translator.Commands }),
			counter("unknown_controls_total", "Control messages with no matching value.",
				func(s gateway.Stats) int64 { return s.Translator.UnknownControl }),
			counter("process_errors_total", "Values published raw after a processor failure.",
				func(s gateway.Stats) int64 { return s.Translator.ProcessErrors }),
			counter("reloads_total", "Device list reloads.",
				func(s gateway.Stats) int64 { return s.Reloads }),
			counter("reload_failures_total", "Device list reloads that kept the old routes.",
				func(s gateway.Stats) int64 { return s.ReloadFailures }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *gatewayCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.state
	ch <- c.healthy
	ch <- c.frames
	ch <- c.radioUp
	for _, g := range c.gauges {
		ch <- g.desc
	}
	for _, m := range c.counters {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *gatewayCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.gateway.Stats()

	for _, state := range gatewayStates {
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, boolFloat(state == stats.State), state)
	}
	ch <- prometheus.MustNewConstMetric(c.healthy, prometheus.GaugeValue, boolFloat(c.gateway.IsHealthy()))

	tr := stats.Translator
	for outcome, n := range map[string]int64{
		"accepted":   tr.Accepted,
		"duplicate":  tr.Duplicates,
		"malformed":  tr.Malformed,
		"unroutable": tr.Unroutable,
	} {
		ch <- prometheus.MustNewConstMetric(c.frames, prometheus.CounterValue, float64(n), outcome)
	}

	for _, g := range c.gauges {
		ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, float64(g.value(stats)))
	}
	for _, m := range c.counters {
		ch <- prometheus.MustNewConstMetric(m.desc, prometheus.CounterValue, float64(m.value(stats)))
	}

	if c.radio != nil {
		up := c.radio.Stats().Status == process.StatusRunning
		ch <- prometheus.MustNewConstMetric(c.radioUp, prometheus.GaugeValue, boolFloat(up))
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// newMetricsRegistry builds the registry served on /metrics: the gateway
// collector plus the standard Go and process collectors.
func newMetricsRegistry(gw GatewayStatus, radio RadioStatus) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		newGatewayCollector(gw, radio),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// prometheusHandler serves the registry in the Prometheus text format.
func prometheusHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
