package executor

// ProgressSink receives step and batch milestones. stepIndex is 1-based;
// orchestrator milestones use the scenario position instead.
type ProgressSink interface {
	OnProgress(stepIndex, totalSteps int, stepName, message string)
}

type ProgressFunc func(stepIndex, totalSteps int, stepName, message string)

func (f ProgressFunc) OnProgress(stepIndex, totalSteps int, stepName, message string) {
	f(stepIndex, totalSteps, stepName, message)
}

// MultiProgress fans one event out to every non-nil sink.
type MultiProgress []ProgressSink

func (m MultiProgress) OnProgress(stepIndex, totalSteps int, stepName, message string) {
	for _, s := range m {
		if s != nil {
			s.OnProgress(stepIndex, totalSteps, stepName, message)
		}
	}
}

type nopProgress struct{}

func (nopProgress) OnProgress(int, int, string, string) {}
