package pipeline

import "time"

// StageReporter receives progress events while a request runs. Implemented
// by the websocket handler and the CLI; methods are called from the request
// goroutine, in stage order.
type StageReporter interface {
	// StageStarted is called before an enabled stage runs.
	StageStarted(name string)

	// StageCompleted is called after a stage produced its output.
	StageCompleted(name string, d time.Duration)
}

// NoOpReporter implements StageReporter and does nothing. Useful as a
// default when no progress reporting is needed.
type NoOpReporter struct{}

func (NoOpReporter) StageStarted(string)                  {}
func (NoOpReporter) StageCompleted(string, time.Duration) {}
