package batch

import (
	"time"

	"go.uber.org/zap"
)

// TelemetryHook receives slot lifecycle notifications. Methods are called
// from worker goroutines and must be safe for concurrent use.
//
// Events carry operational metadata only. Prompts and API keys are never
// included.
type TelemetryHook interface {
	// OnSlotStart is called just before a slot's provider call.
	OnSlotStart(e SlotStartEvent)

	// OnSlotEnd is called once the slot's result has been collected or
	// discarded.
	OnSlotEnd(e SlotEndEvent)
}

// SlotStartEvent describes a slot about to call its provider.
type SlotStartEvent struct {
	BatchID  string
	Provider string
	Index    int
	Total    int
	Filename string
	Start    time.Time
}

// SlotEndEvent describes a finished provider call.
type SlotEndEvent struct {
	BatchID  string
	Provider string
	Index    int
	Total    int
	Filename string
	Start    time.Time
	End      time.Time
	Err      error

	// Discarded is set when the result arrived after the batch was rate
	// limited and was dropped from the outcome.
	Discarded bool
}

// Duration returns the elapsed time of the provider call.
func (e SlotEndEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// NoopTelemetryHook ignores all events.
type NoopTelemetryHook struct{}

// OnSlotStart does nothing.
func (NoopTelemetryHook) OnSlotStart(SlotStartEvent) {}

// OnSlotEnd does nothing.
func (NoopTelemetryHook) OnSlotEnd(SlotEndEvent) {}

// LoggingTelemetryHook writes slot events to a zap logger at debug level.
// Failures are logged at warn level.
type LoggingTelemetryHook struct {
	logger *zap.Logger
}

// NewLoggingTelemetryHook returns a hook that logs to logger.
func NewLoggingTelemetryHook(logger *zap.Logger) *LoggingTelemetryHook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingTelemetryHook{logger: logger}
}

// OnSlotStart logs the start of a provider call.
func (h *LoggingTelemetryHook) OnSlotStart(e SlotStartEvent) {
	h.logger.Debug("slot started",
		zap.String("batch_id", e.BatchID),
		zap.String("provider", e.Provider),
		zap.Int("slot", e.Index),
		zap.Int("total", e.Total),
		zap.String("filename", e.Filename),
	)
}

// OnSlotEnd logs the result of a provider call.
func (h *LoggingTelemetryHook) OnSlotEnd(e SlotEndEvent) {
	fields := []zap.Field{
		zap.String("batch_id", e.BatchID),
		zap.String("provider", e.Provider),
		zap.Int("slot", e.Index),
		zap.Int("total", e.Total),
		zap.String("filename", e.Filename),
		zap.Duration("duration", e.Duration()),
		zap.Bool("discarded", e.Discarded),
	}
	if e.Err != nil {
		h.logger.Warn("slot failed", append(fields, zap.Error(e.Err))...)
		return
	}
	h.logger.Debug("slot finished", fields...)
}

var (
	_ TelemetryHook = NoopTelemetryHook{}
	_ TelemetryHook = (*LoggingTelemetryHook)(nil)
)
