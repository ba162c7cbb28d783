package api

// --- Data Structures for API and WebSocket Messages ---

// ErrorBody is the JSON shape of every failed API call.
type ErrorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}

// HeadingMessage is pushed to heading WebSocket clients.
type HeadingMessage struct {
	Available   bool     `json:"available"`
	HeadingDeg  *float64 `json:"heading_deg,omitempty"`
	AgeMs       *int64   `json:"age_ms,omitempty"`
	Error       string   `json:"error,omitempty"`
	TimestampMs int64    `json:"timestamp_ms"`
}

// SpeedsUpdate is the body of a speeds PATCH. Absent fields keep their value.
type SpeedsUpdate struct {
	WalkSpeed *float64 `json:"walk_speed"`
	YawSpeed  *float64 `json:"yaw_speed"`
}
