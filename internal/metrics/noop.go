package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncCommand is a no-op.
func (n *NoopRecorder) IncCommand(command string) {}

// IncCommandDenied is a no-op.
func (n *NoopRecorder) IncCommandDenied(reason string) {}

// IncRegistration is a no-op.
func (n *NoopRecorder) IncRegistration(outcome string) {}

// IncStoreError is a no-op.
func (n *NoopRecorder) IncStoreError() {}

// ObserveStoreDuration is a no-op.
func (n *NoopRecorder) ObserveStoreDuration(duration time.Duration) {}

// IncGameRoll is a no-op.
func (n *NoopRecorder) IncGameRoll(game string, won bool) {}
