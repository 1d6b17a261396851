package narrator

import (
	"context"

	"github.com/nathoo/mirrorloop/types"
)

// Scripted replays canned replies in order, optionally chunked, and records
// what it was asked. It backs the engine tests and the offline demo mode.
type Scripted struct {
	Replies   []string
	ChunkSize int // runes per chunk; 0 streams each reply whole

	Calls   int
	Systems []string
	Turns   []string // the live user message of each call
}

// Stream returns the next canned reply, repeating the last one when the
// script runs out.
func (s *Scripted) Stream(ctx context.Context, system string, history []types.ChatMessage, onChunk func(string)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.Replies) == 0 {
		return "", ErrEmptyReply
	}

	s.Systems = append(s.Systems, system)
	if len(history) > 0 {
		s.Turns = append(s.Turns, history[len(history)-1].Content)
	}

	idx := s.Calls
	if idx >= len(s.Replies) {
		idx = len(s.Replies) - 1
	}
	s.Calls++
	reply := s.Replies[idx]

	if onChunk != nil {
		if s.ChunkSize <= 0 {
			onChunk(reply)
		} else {
			runes := []rune(reply)
			for i := 0; i < len(runes); i += s.ChunkSize {
				end := i + s.ChunkSize
				if end > len(runes) {
					end = len(runes)
				}
				onChunk(string(runes[i:end]))
			}
		}
	}
	return reply, nil
}

func (s *Scripted) Close() error { return nil }
