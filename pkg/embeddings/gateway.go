package embeddings

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DefaultWidth is the logical vector width stored alongside memories and
// summaries when no width is configured.
const DefaultWidth = 768

// ErrWidthExceeded is returned when the backend model's native embedding
// dimension is larger than the configured storage width. The gateway never
// truncates: an oversized vector is a configuration fault and must fail
// fast rather than produce a row violating the fixed-width invariant.
type ErrWidthExceeded struct {
	Native int
	Width  int
}

func (e ErrWidthExceeded) Error() string {
	return fmt.Sprintf("embedding width %d exceeds configured storage width %d", e.Native, e.Width)
}

// Gateway wraps a backend Embedder and guarantees that every non-empty
// vector it returns has exactly the configured width, zero-padding the
// backend's native output up to that width.
type Gateway struct {
	embedder Embedder
	width    int
	logger   *zap.Logger
}

// NewGateway creates a fixed-width embedding gateway. A zero or negative
// width falls back to DefaultWidth.
func NewGateway(embedder Embedder, width int, logger *zap.Logger) *Gateway {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Gateway{
		embedder: embedder,
		width:    width,
		logger:   logger,
	}
}

// Width returns the fixed logical vector width.
func (g *Gateway) Width() int {
	return g.width
}

// Embed returns a vector of exactly Width() elements, or nil.
//
// Empty input is skipped, not attempted: the result is (nil, nil). A
// backend failure is returned to the caller, which applies its own
// fail-open or fail-closed policy; an absent vector always means "no
// embedding available", never a partial one.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}

	native, err := g.embedder.Embed(ctx, text)
	if err != nil {
		g.logger.Warn("embedding call failed", zap.Error(err))
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(native) == 0 {
		return nil, nil
	}
	if len(native) > g.width {
		err := ErrWidthExceeded{Native: len(native), Width: g.width}
		g.logger.Error("embedding wider than storage width", zap.Error(err))
		return nil, err
	}

	padded := make([]float32, g.width)
	copy(padded, native)
	return padded, nil
}

// Close releases the backend embedder.
func (g *Gateway) Close() error {
	return g.embedder.Close()
}
