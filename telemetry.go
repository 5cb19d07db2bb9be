package server

import "sync/atomic"

// TelemetryCounters tracks broadcast volume and delivery failures. Counters
// are process-wide and safe for concurrent use.
type TelemetryCounters struct {
	bytesSent     atomic.Uint64
	framesSent    atomic.Uint64
	framesDropped atomic.Uint64
	sendFailures  atomic.Uint64
}

// TelemetrySnapshot is the JSON view served by the diagnostics endpoint.
type TelemetrySnapshot struct {
	BytesSent     uint64 `json:"bytesSent"`
	FramesSent    uint64 `json:"framesSent"`
	FramesDropped uint64 `json:"framesDropped"`
	SendFailures  uint64 `json:"sendFailures"`
}

func NewTelemetryCounters() *TelemetryCounters {
	return &TelemetryCounters{}
}

// RecordBroadcast accounts one delivered frame.
func (t *TelemetryCounters) RecordBroadcast(bytes int) {
	if bytes < 0 {
		bytes = 0
	}
	t.bytesSent.Add(uint64(bytes))
	t.framesSent.Add(1)
}

// RecordDroppedFrame accounts a frame discarded under backpressure.
func (t *TelemetryCounters) RecordDroppedFrame() {
	t.framesDropped.Add(1)
}

// RecordSendFailure accounts a write error that disconnected a session.
func (t *TelemetryCounters) RecordSendFailure() {
	t.sendFailures.Add(1)
}

// Snapshot copies the current counter values.
func (t *TelemetryCounters) Snapshot() TelemetrySnapshot {
	return TelemetrySnapshot{
		BytesSent:     t.bytesSent.Load(),
		FramesSent:    t.framesSent.Load(),
		FramesDropped: t.framesDropped.Load(),
		SendFailures:  t.sendFailures.Load(),
	}
}
