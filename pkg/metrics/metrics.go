package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScenariosTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stepflow",
		Name:      "scenarios_total",
		Help:      "Scenario verdicts persisted, by result.",
	}, []string{"result"})

	StepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stepflow",
		Name:      "steps_total",
		Help:      "Steps executed, by step type and final status.",
	}, []string{"type", "status"})

	LocatorResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stepflow",
		Name:      "locator_resolutions_total",
		Help:      "Element resolutions by the strategy that matched, or none.",
	}, []string{"strategy"})

	BatchRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stepflow",
		Name:      "batch_running",
		Help:      "1 while a batch is in flight.",
	})
)

func RecordScenario(result string) {
	ScenariosTotal.WithLabelValues(result).Inc()
}

func RecordStep(stepType, status string) {
	StepsTotal.WithLabelValues(stepType, status).Inc()
}

func SetBatchRunning(running bool) {
	if running {
		BatchRunning.Set(1)
		return
	}
	BatchRunning.Set(0)
}
