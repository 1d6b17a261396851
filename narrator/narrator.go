// Package narrator abstracts the streaming story model. The engine only
// sees Client; the Gemini-backed implementation and the deterministic
// scripted one used in tests are interchangeable.
package narrator

import (
	"context"
	"errors"

	"github.com/nathoo/mirrorloop/types"
)

// ErrEmptyReply means the model produced no usable text, typically a
// safety block. Callers keep the session unchanged and let the player retry.
var ErrEmptyReply = errors.New("narrator returned no text")

// Client streams one narrator reply. The system prompt is rebuilt by the
// caller before every call; history carries the rolling transcript window.
// onChunk receives each text fragment as it arrives and may be nil; the
// full concatenated reply is returned once the stream ends.
type Client interface {
	Stream(ctx context.Context, system string, history []types.ChatMessage, onChunk func(string)) (string, error)
	Close() error
}
