package detect

import (
	"log/slog"
)

// ProgressCallback receives per-strategy progress while a detection run is in
// flight. Progress is purely informational and has no effect on control flow.
type ProgressCallback interface {
	// OnStart is called once before the strategy loop with the total count.
	OnStart(total int)

	// OnStrategy is called before each strategy attempt. index is 1-based.
	OnStrategy(index, total int, name string)

	// OnComplete is called once with the final outcome.
	OnComplete(outcome Outcome)
}

// NoOpProgress implements ProgressCallback and does nothing.
type NoOpProgress struct{}

func (NoOpProgress) OnStart(int)                 {}
func (NoOpProgress) OnStrategy(int, int, string) {}
func (NoOpProgress) OnComplete(Outcome)          {}

// LogProgress reports progress through slog.
type LogProgress struct {
	Logger *slog.Logger
	Level  slog.Level
}

func (l LogProgress) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l LogProgress) OnStart(total int) {
	l.logger().Log(nil, l.Level, "Detection started", "strategies", total)
}

func (l LogProgress) OnStrategy(index, total int, name string) {
	l.logger().Log(nil, l.Level, "Trying strategy", "index", index, "total", total, "strategy", name)
}

func (l LogProgress) OnComplete(outcome Outcome) {
	l.logger().Log(nil, l.Level, "Detection finished",
		"found", outcome.Found, "strategy", outcome.Strategy, "index", outcome.StrategyIndex)
}

// MultiProgress fans progress out to several callbacks.
type MultiProgress []ProgressCallback

func (m MultiProgress) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgress) OnStrategy(index, total int, name string) {
	for _, cb := range m {
		cb.OnStrategy(index, total, name)
	}
}

func (m MultiProgress) OnComplete(outcome Outcome) {
	for _, cb := range m {
		cb.OnComplete(outcome)
	}
}
