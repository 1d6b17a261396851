package save

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a slot has no snapshot.
var ErrNotFound = errors.New("save slot not found")

// AutosaveSlot is the slot the engine writes after every committed turn.
const AutosaveSlot = "autosave"

// Store persists encoded snapshots by slot name.
type Store interface {
	Put(ctx context.Context, slot string, data []byte) error
	Get(ctx context.Context, slot string) ([]byte, error)
	Has(ctx context.Context, slot string) (bool, error)
	Delete(ctx context.Context, slot string) error
}
