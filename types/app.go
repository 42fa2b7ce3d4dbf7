package types

// ------------------------
// Application state (retained)
// ------------------------

type AppState struct {
	State  string `json:"state"`  // "uninit", "clock_ready", ..., "idle", "halted"
	Status string `json:"status"` // freeform short code
	TSms   int64  `json:"ts_ms"`
}

// FatalReport is published (retained) just before the fatal handler runs.
type FatalReport struct {
	Op    string `json:"op"`
	Code  string `json:"code"`
	Error string `json:"error"`
	State string `json:"state"`
	TSms  int64  `json:"ts_ms"`
}

// Heartbeat is the periodic status summary.
type Heartbeat struct {
	State    string      `json:"state"`
	UptimeMs int64       `json:"uptime_ms"`
	Duty     uint8       `json:"duty"`
	Lines    uint32      `json:"lines"`
	ISRDrops uint32      `json:"isr_drops"`
	Serial   SerialStats `json:"serial"`
	TSms     int64       `json:"ts_ms"`
}
