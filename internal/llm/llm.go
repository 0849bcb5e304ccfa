// Package llm provides the reply generators used by the chat pipeline: an
// OpenAI chat-completions client constrained to a JSON schema, and a static
// generator for offline development. Both can consult a knowledge index for
// reference notes.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sickco/sickco-backend/internal/config"
	"github.com/sickco/sickco-backend/internal/domain"
	"github.com/sickco/sickco-backend/internal/knowledge"
)

// Generator produces a structured reply for one user message.
type Generator interface {
	Generate(ctx context.Context, userMessage string) (domain.StructuredReply, error)
}

// Option configures a generator.
type Option func(*options)

type options struct {
	notes knowledge.Index
	topK  int
}

// WithKnowledge makes the generator consult idx for up to k reference notes
// per message. A nil idx or k <= 0 disables lookups.
func WithKnowledge(idx knowledge.Index, k int) Option {
	return func(o *options) {
		o.notes = idx
		o.topK = k
	}
}

func (o options) lookup(msg string) []knowledge.Note {
	if o.notes == nil || o.topK <= 0 {
		return nil
	}
	return o.notes.Lookup(msg, o.topK)
}

// New returns the generator selected by cfg.Provider, wired to the notes
// from cfg.KnowledgePath (or the built-in notes) when cfg.KnowledgeTopK > 0.
func New(cfg config.LLMConfig) (Generator, error) {
	var opts []Option
	if cfg.KnowledgeTopK > 0 {
		idx, err := loadKnowledge(cfg.KnowledgePath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithKnowledge(idx, cfg.KnowledgeTopK))
	}

	switch cfg.Provider {
	case "openai":
		g, err := NewOpenAIGenerator(cfg, opts...)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "static":
		return NewStaticGenerator(opts...), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func loadKnowledge(path string) (knowledge.Index, error) {
	if strings.TrimSpace(path) == "" {
		return knowledge.Builtin(), nil
	}
	idx, err := knowledge.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load knowledge %s: %w", path, err)
	}
	return idx, nil
}
