package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sickco/sickco-backend/internal/config"
	"github.com/sickco/sickco-backend/internal/knowledge"
)

var testNotes = knowledge.New([]string{
	"Fever: rest, fluids, and see a doctor if it lasts three days.",
	"Cough: honey in warm water helps; see a doctor after three weeks.",
}, knowledge.WithMinRunes(0))

func TestGenerate_AddsReferenceNotes(t *testing.T) {
	var got struct {
		Messages []chatMessage `json:"messages"`
	}
	base := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = io.WriteString(w, completion(validContent, "stop"))
	})
	g, err := NewOpenAIGenerator(config.LLMConfig{
		APIKey:  "sk-test",
		BaseURL: base.baseURL,
		Model:   "gpt-test",
		Timeout: 2 * time.Second,
	}, WithKnowledge(testNotes, 1))
	if err != nil {
		t.Fatalf("NewOpenAIGenerator: %v", err)
	}

	if _, err := g.Generate(context.Background(), "I have a fever"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("expected system+notes+user, got %+v", got.Messages)
	}
	notes := got.Messages[1]
	if notes.Role != "system" || !strings.Contains(notes.Content, "- Fever:") || strings.Contains(notes.Content, "Cough:") {
		t.Fatalf("unexpected notes message: %+v", notes)
	}
	if got.Messages[2].Role != "user" {
		t.Fatalf("user message must come last: %+v", got.Messages)
	}

	// no matching note: no extra message
	if _, err := g.Generate(context.Background(), "my knee hurts"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected system+user only, got %+v", got.Messages)
	}
}

func TestStaticGenerator_UsesBestNote(t *testing.T) {
	g := NewStaticGenerator(WithKnowledge(testNotes, 2))
	r, err := g.Generate(context.Background(), "bad cough")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(r.Information, "Cough:") {
		t.Fatalf("information = %q", r.Information)
	}
	if r2, _ := g.Generate(context.Background(), "my knee hurts"); r2.Information != staticInformation {
		t.Fatalf("fallback information expected, got %q", r2.Information)
	}
	if r3, _ := NewStaticGenerator(WithKnowledge(nil, 3)).Generate(context.Background(), "cough"); r3.Information != staticInformation {
		t.Fatalf("nil index must be ignored")
	}
}

func TestNew_Knowledge(t *testing.T) {
	g, err := New(config.LLMConfig{Provider: "static", KnowledgeTopK: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r, _ := g.Generate(context.Background(), "I have had a sore throat for days")
	if !strings.HasPrefix(r.Information, "Sore throat:") {
		t.Fatalf("built-in notes not used: %q", r.Information)
	}

	missing := filepath.Join(t.TempDir(), "nope.md")
	if g, err := New(config.LLMConfig{Provider: "static", KnowledgeTopK: 1, KnowledgePath: missing}); err == nil || g != nil {
		t.Fatalf("expected load error, got %v %v", g, err)
	}
}

func TestReferencePrompt(t *testing.T) {
	p := referencePrompt([]knowledge.Note{{Text: "a"}, {Text: "b"}})
	if !strings.HasSuffix(p, "- a\n- b") {
		t.Fatalf("prompt = %q", p)
	}
}
