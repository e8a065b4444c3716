package websocket

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick      Event = "tick"
	EventTimedOut  Event = "timed_out"
	EventCompleted Event = "completed"
	EventError     Event = "error"
)

// TickResponse carries the seconds left before the attempt's deadline.
type TickResponse struct {
	Event            Event  `json:"event"`
	SessionID        string `json:"session_id"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	Deadline         string `json:"deadline"`
}

// ClosingResponse is the last message before the server closes the stream.
type ClosingResponse struct {
	Event     Event  `json:"event"`
	SessionID string `json:"session_id"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
