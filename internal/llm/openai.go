package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sickco/sickco-backend/internal/config"
	"github.com/sickco/sickco-backend/internal/domain"
)

const chatCompletionsPath = "/v1/chat/completions"

// maxErrorBody caps how much of a non-2xx body ends up in an error.
const maxErrorBody = 512

// Generation failures other than transport errors.
var (
	ErrRefused     = errors.New("model refused to answer")
	ErrTruncated   = errors.New("model output truncated")
	ErrEmptyOutput = errors.New("model returned no content")
	ErrBadReply    = errors.New("reply does not match the structured reply shape")
)

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

// OpenAIGenerator calls the chat-completions endpoint once per Generate call
// with a fixed system prompt and a strict JSON-schema response format. It is
// safe for concurrent use.
type OpenAIGenerator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	opts        options
}

// NewOpenAIGenerator builds a generator from cfg. cfg.Timeout bounds each
// call end to end.
func NewOpenAIGenerator(cfg config.LLMConfig, opts ...Option) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing OPENAI_API_KEY")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://api.openai.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return &OpenAIGenerator{
		opts:        o,
		baseURL:     base,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaFormat `json:"json_schema"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content *string `json:"content"`
			Refusal *string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
}

// wireReply mirrors the schema. Pointers distinguish a missing field from
// an empty string.
type wireReply struct {
	Empathy          *string `json:"empathy"`
	Information      *string `json:"information"`
	Disclaimer       *string `json:"disclaimer"`
	FollowUpQuestion *string `json:"followUpQuestion"`
}

// Generate requests a structured reply for userMessage. Transport errors,
// non-2xx responses, refusals, truncation and any content that does not
// decode into all four string fields are returned as errors.
func (g *OpenAIGenerator) Generate(ctx context.Context, userMessage string) (domain.StructuredReply, error) {
	ctx, span := otel.Tracer("llm/OpenAIGenerator").Start(ctx, "Generate",
		trace.WithAttributes(attribute.String("llm.model", g.model)),
	)
	defer span.End()

	messages := []chatMessage{{Role: "system", Content: strings.TrimSpace(systemPrompt)}}
	if notes := g.opts.lookup(userMessage); len(notes) > 0 {
		messages = append(messages, chatMessage{Role: "system", Content: referencePrompt(notes)})
		span.SetAttributes(attribute.Int("llm.reference_notes", len(notes)))
	}
	messages = append(messages, chatMessage{Role: "user", Content: userMessage})

	req := chatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaFormat{
				Name:   "structured_reply",
				Strict: true,
				Schema: replySchema,
			},
		},
	}

	raw, err := g.doOnce(ctx, http.MethodPost, chatCompletionsPath, req)
	if err != nil {
		return domain.StructuredReply{}, err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.StructuredReply{}, fmt.Errorf("openai decode error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.StructuredReply{}, ErrEmptyOutput
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != nil && strings.TrimSpace(*choice.Message.Refusal) != "" {
		return domain.StructuredReply{}, ErrRefused
	}
	if choice.FinishReason == "length" {
		return domain.StructuredReply{}, ErrTruncated
	}
	if choice.Message.Content == nil || strings.TrimSpace(*choice.Message.Content) == "" {
		return domain.StructuredReply{}, ErrEmptyOutput
	}
	return ParseReply([]byte(*choice.Message.Content))
}

// ParseReply strictly decodes a structured reply: exactly one JSON object
// whose four fields are all present strings. Unknown fields are rejected.
func ParseReply(content []byte) (domain.StructuredReply, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()

	var w wireReply
	if err := dec.Decode(&w); err != nil {
		return domain.StructuredReply{}, fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	if dec.More() {
		return domain.StructuredReply{}, fmt.Errorf("%w: trailing data", ErrBadReply)
	}

	var missing []string
	if w.Empathy == nil {
		missing = append(missing, "empathy")
	}
	if w.Information == nil {
		missing = append(missing, "information")
	}
	if w.Disclaimer == nil {
		missing = append(missing, "disclaimer")
	}
	if w.FollowUpQuestion == nil {
		missing = append(missing, "followUpQuestion")
	}
	if len(missing) > 0 {
		return domain.StructuredReply{}, fmt.Errorf("%w: missing %s", ErrBadReply, strings.Join(missing, ", "))
	}

	return domain.StructuredReply{
		Empathy:          *w.Empathy,
		Information:      *w.Information,
		Disclaimer:       *w.Disclaimer,
		FollowUpQuestion: *w.FollowUpQuestion,
	}, nil
}

// doOnce performs a single JSON request and returns the raw 2xx body.
func (g *OpenAIGenerator) doOnce(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b := string(raw)
		if len(b) > maxErrorBody {
			b = b[:maxErrorBody]
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: b}
	}
	return raw, nil
}
