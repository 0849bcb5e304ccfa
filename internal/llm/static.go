package llm

import (
	"context"
	"strings"

	"github.com/sickco/sickco-backend/internal/domain"
)

const staticDisclaimer = "This is general information, not medical advice. Please consult a healthcare professional about your symptoms."

const staticInformation = "Many common symptoms improve with rest, fluids and time. If they get worse, last more than a few days, or you feel very unwell, contact a doctor."

// StaticGenerator returns canned replies without calling any external
// service. It picks a follow-up question from a few symptom keywords, and
// the information from the best knowledge note when one matches.
type StaticGenerator struct {
	opts options
}

// NewStaticGenerator returns a StaticGenerator.
func NewStaticGenerator(opts ...Option) *StaticGenerator {
	g := &StaticGenerator{}
	for _, fn := range opts {
		fn(&g.opts)
	}
	return g
}

var staticFollowUps = []struct {
	keyword  string
	question string
}{
	{"fever", "How high has your temperature been, and for how long?"},
	{"headache", "Where is the headache located, and how would you rate the pain from 1 to 10?"},
	{"cough", "Is the cough dry, or are you bringing anything up?"},
	{"pain", "When did the pain start, and does anything make it better or worse?"},
}

// Generate returns a deterministic reply for userMessage. It fails only when
// ctx is already done.
func (g *StaticGenerator) Generate(ctx context.Context, userMessage string) (domain.StructuredReply, error) {
	if err := ctx.Err(); err != nil {
		return domain.StructuredReply{}, err
	}
	follow := "When did these symptoms start?"
	low := strings.ToLower(userMessage)
	for _, f := range staticFollowUps {
		if strings.Contains(low, f.keyword) {
			follow = f.question
			break
		}
	}
	info := staticInformation
	if notes := g.opts.lookup(userMessage); len(notes) > 0 {
		info = notes[0].Text
	}
	return domain.StructuredReply{
		Empathy:          "I'm sorry you're not feeling well. Thanks for telling me what's going on.",
		Information:      info,
		Disclaimer:       staticDisclaimer,
		FollowUpQuestion: follow,
	}, nil
}
