package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
)

func SetupPrometheus(extraCollectors ...prometheus.Collector) *prometheus.Registry {
	promRegistry := prometheus.NewRegistry()

	// Add Go module build info, runtime metrics and process collectors.
	promRegistry.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promRegistry.MustRegister(extraCollectors...)

	return promRegistry
}

// Snapshot gathers counters and gauges from g and returns their values,
// keyed by metric name plus labels (e.g. `gymplan_core_invariant_violations{rule="C"}`).
// Histograms are reported by their sample count under the `_count` suffix.
func Snapshot(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	values := make(map[string]float64)
	for _, family := range families {
		for _, m := range family.GetMetric() {
			key := family.GetName() + labelsSuffix(m.GetLabel())
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				values[key] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				values[key] = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				values[family.GetName()+"_count"+labelsSuffix(m.GetLabel())] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	return values, nil
}

func labelsSuffix(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	suffix := "{"
	for i, l := range labels {
		if i > 0 {
			suffix += ","
		}
		suffix += fmt.Sprintf("%s=%q", l.GetName(), l.GetValue())
	}
	return suffix + "}"
}
