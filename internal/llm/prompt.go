package llm

import (
	"strings"

	"github.com/sickco/sickco-backend/internal/knowledge"
)

// systemPrompt is sent with every generation request.
const systemPrompt = `
You are SickCo, a friendly health information assistant. A user describes symptoms in their own words.

Your role:
- Acknowledge how the user feels with genuine empathy.
- Give clear, general, evidence-based information about what the symptoms commonly indicate and sensible self-care.
- Say when the symptoms warrant seeing a clinician, and when they warrant emergency care.
- You are NOT a doctor and you do NOT diagnose or prescribe.

Style:
- Answer in the SAME LANGUAGE as the user.
- Use simple, everyday language.
- Keep "information" to a few short paragraphs.

Safety:
- If the user describes chest pain, trouble breathing, stroke signs, severe bleeding, or thoughts of self-harm, tell them to contact emergency services now.

Output:
Return ONLY a JSON object with exactly these string fields:
- "empathy": one or two sentences acknowledging the user.
- "information": the substantive answer.
- "disclaimer": a short reminder that this is not medical advice.
- "followUpQuestion": one clarifying question that helps continue the conversation.
`

// replySchema is the strict JSON schema for the structured reply.
var replySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"empathy":          map[string]any{"type": "string"},
		"information":      map[string]any{"type": "string"},
		"disclaimer":       map[string]any{"type": "string"},
		"followUpQuestion": map[string]any{"type": "string"},
	},
	"required":             []string{"empathy", "information", "disclaimer", "followUpQuestion"},
	"additionalProperties": false,
}

// referencePrompt lists notes as background material for the model.
func referencePrompt(notes []knowledge.Note) string {
	var b strings.Builder
	b.WriteString("Reference notes. Use them only where they fit the user's situation; never quote them as a diagnosis.\n")
	for _, n := range notes {
		b.WriteString("- ")
		b.WriteString(n.Text)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
