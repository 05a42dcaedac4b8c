package tufngate

// Check names passed to Recorder.RecordDecision.
const (
	CheckCooldown  = "cooldown"
	CheckRateLimit = "rate_limit"
)

// Recorder receives gate and submission events. metrics.Metrics satisfies it.
type Recorder interface {
	RecordDecision(check, key string, allowed bool)
	RecordSubmission(form, outcome string)
	RecordSweep(removed int, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordDecision(string, string, bool) {}
func (nopRecorder) RecordSubmission(string, string)     {}
func (nopRecorder) RecordSweep(int, error)              {}
