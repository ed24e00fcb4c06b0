// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// writer and reader for the engram generation stream. The writer emits token
// frames from the API server; the reader parses them back on the chat client.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event represents a single parsed SSE event, delimited by a blank line
// in the byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n" (per the SSE spec, multiple data fields are joined
	// with a single newline).
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// Frame is the JSON payload carried in the Data field of a generation stream
// event. Exactly one of Token, Status, or Error is set per frame.
type Frame struct {
	Token  string `json:"token,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// StatusDone is the Status value of the terminal frame of a successful
// generation stream.
const StatusDone = "done"
