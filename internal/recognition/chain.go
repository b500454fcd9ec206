package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Chain tries recognizers in order and returns the first successful
// recognition. Use it to fall back from a remote model to a local engine.
type Chain struct {
	recognizers []Recognizer
}

// NewChain creates a Chain over recognizers, primary first
func NewChain(recognizers ...Recognizer) *Chain {
	return &Chain{recognizers: recognizers}
}

// Recognize returns the first backend result. The error of every backend is
// returned when all of them fail.
func (c *Chain) Recognize(ctx context.Context, img Image) (*Recognition, error) {
	if len(c.recognizers) == 0 {
		return nil, fmt.Errorf("no recognizers configured")
	}
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}

	var errs []error
	for i, r := range c.recognizers {
		rec, err := r.Recognize(ctx, img)
		if err == nil {
			if i > 0 {
				slog.Info("Recognized with fallback engine", "engine", fmt.Sprintf("%T", r), "position", i)
			}
			return rec, nil
		}
		errs = append(errs, fmt.Errorf("%T: %w", r, err))
		if ctx.Err() != nil {
			break
		}
		slog.Warn("Recognition failed, trying next engine", "engine", fmt.Sprintf("%T", r), "error", err)
	}
	return nil, fmt.Errorf("all recognizers failed: %w", errors.Join(errs...))
}

// Close closes every recognizer in the chain
func (c *Chain) Close() error {
	var errs []error
	for _, r := range c.recognizers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
