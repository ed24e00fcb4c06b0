package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Writer emits generation stream frames as SSE "data:" events. It flushes
// after every frame so tokens reach the client as they are produced.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps dst in a frame writer. If dst is already a *bufio.Writer it
// is used directly.
func NewWriter(dst io.Writer) *Writer {
	bw, ok := dst.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(dst)
	}
	return &Writer{w: bw}
}

// WriteFrame marshals the frame and writes it as a single SSE event.
func (w *Writer) WriteFrame(frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshaling frame: %w", err)
	}

	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}

	return w.w.Flush()
}

// WriteToken emits a token frame.
func (w *Writer) WriteToken(token string) error {
	return w.WriteFrame(Frame{Token: token})
}

// WriteDone emits the terminal status frame of a successful stream.
func (w *Writer) WriteDone() error {
	return w.WriteFrame(Frame{Status: StatusDone})
}

// WriteError emits an error frame. The stream ends after an error frame.
func (w *Writer) WriteError(message string) error {
	return w.WriteFrame(Frame{Error: message})
}
