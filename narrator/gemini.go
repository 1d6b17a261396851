package narrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/nathoo/mirrorloop/types"
)

// Gemini is the production narrator backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini dials the API. The model name comes from configuration so the
// narrator can be swapped without a rebuild.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("dial narrator: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Stream sends the transcript window as a chat and streams the reply. The
// last user message is the live turn; everything before it is history.
func (g *Gemini) Stream(ctx context.Context, system string, history []types.ChatMessage, onChunk func(string)) (string, error) {
	if len(history) == 0 {
		return "", ErrEmptyReply
	}

	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}

	chat := model.StartChat()
	for _, m := range history[:len(history)-1] {
		role := "user"
		if m.Role == types.RoleAssistant {
			role = "model"
		}
		chat.History = append(chat.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	var b strings.Builder
	iter := chat.SendMessageStream(ctx, genai.Text(history[len(history)-1].Content))
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", fmt.Errorf("narrator stream: %w", err)
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					b.WriteString(string(text))
					if onChunk != nil {
						onChunk(string(text))
					}
				}
			}
		}
	}

	if b.Len() == 0 {
		return "", ErrEmptyReply
	}
	return b.String(), nil
}

// Close releases the API client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
