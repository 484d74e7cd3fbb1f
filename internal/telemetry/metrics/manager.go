package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ProgressionApplied           = "applied"
	ProgressionSkippedIncomplete = "skipped_incomplete"
	ProgressionNoPlannedSets     = "no_planned_sets"
	ProgressionFailed            = "failed"
)

type Manager struct {
	// counters
	CounterWorkoutsStarted     prometheus.Counter
	CounterWorkoutsFinished    prometheus.Counter
	CounterSetsLogged          *prometheus.CounterVec
	CounterInvariantViolations *prometheus.CounterVec
	CounterProgressionRuns     *prometheus.CounterVec
	CounterProgressionSkipped  prometheus.Counter
	CounterPlansImported       prometheus.Counter

	// gauges
	GaugeLifeSignal prometheus.Gauge

	// histograms
	HistProgressionDuration prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("gymplan", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("gymplan", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterWorkoutsStarted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workouts_started",
		Help:      "The total number of newly started workouts",
	})
	counterWorkoutsFinished := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workouts_finished",
		Help:      "The total number of finished workouts",
	})
	counterSetsLogged := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sets_logged",
		Help:      "The total number of logged workout sets",
	}, []string{"op"})
	counterInvariantViolations := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "invariant_violations",
		Help:      "The total number of rejected workout set writes, by violated rule",
	}, []string{"rule"})
	counterProgressionRuns := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "progression_runs",
		Help:      "The total number of progression runs, by outcome",
	}, []string{"outcome"})
	counterProgressionSkipped := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "progression_skipped_slots",
		Help:      "Number of progression targets skipped because next week has no matching exercise slot",
	})
	counterPlansImported := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "plans_imported",
		Help:      "The total number of imported plan documents",
	})

	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        "life_signal",
		Help:        "Shows whether the core is set up and alive",
		ConstLabels: nil,
	})

	histProgressionDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			Name:      "progression_duration_seconds",
			Help:      "Duration of a single progression run in seconds",
		},
	)

	return &Manager{
		CounterWorkoutsStarted:     counterWorkoutsStarted,
		CounterWorkoutsFinished:    counterWorkoutsFinished,
		CounterSetsLogged:          counterSetsLogged,
		CounterInvariantViolations: counterInvariantViolations,
		CounterProgressionRuns:     counterProgressionRuns,
		CounterProgressionSkipped:  counterProgressionSkipped,
		CounterPlansImported:       counterPlansImported,
		GaugeLifeSignal:            gaugeLifeSignal,
		HistProgressionDuration:    histProgressionDuration,
	}
}
