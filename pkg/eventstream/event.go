package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after a turn has been fully
	// persisted and its side-effect agents have run.
	EventTypeTurnCompleted = "engram.turn.completed"
)

// TurnCompletedEvent is a transport-neutral event payload describing one
// completed conversational turn and the fate of its side effects.
type TurnCompletedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	SessionID        string `json:"session_id"`
	UserEventID      string `json:"user_event_id"`
	AssistantEventID string `json:"assistant_event_id"`

	// Distillation and Extraction report each side-effect agent's typed
	// outcome ("applied", "none", "malformed", "failed").
	Distillation string `json:"distillation"`
	Extraction   string `json:"extraction"`

	DurationMs int64 `json:"duration_ms"`
}
