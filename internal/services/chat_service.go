// Package services – ChatService
//
// This file implements ChatService, the pipeline that processes one chat turn:
// validate the message, resolve the caller, persist the user message, ask the
// reply generator for a structured reply, attach it to the turn and return
// it. Each step strictly follows the previous one and nothing is retried.
//
// Partial failures never roll back: when generation or the final write fails,
// the turn stays persisted without a reply so the user's input is never lost.
//
// Observability: Submit is OpenTelemetry-instrumented, counts outcomes in
// chat_turns_total and times the generator call.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/sickco/sickco-backend/internal/domain"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxMessageRunes is the message limit used when none is configured.
const DefaultMaxMessageRunes = 2000

// AuthGate resolves the caller of the current request to a user id.
type AuthGate interface {
	RequireUser(ctx context.Context) (string, error)
}

// TurnStore is the part of the message store ChatService writes through.
type TurnStore interface {
	CreateTurn(ctx context.Context, userID, userMessage string) (*domain.Turn, error)
	AttachReply(ctx context.Context, turnID string, reply domain.StructuredReply) error
	GetTurn(ctx context.Context, id, userID string) (*domain.Turn, error)
}

// ReplyGenerator turns a user message into a structured reply. A returned
// reply always has all four fields present.
type ReplyGenerator interface {
	Generate(ctx context.Context, userMessage string) (domain.StructuredReply, error)
}

// IdempotencyStore maps a caller-supplied key to the turn it produced.
// Lookup returns an error (typically not found) when no live mapping exists.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, key string) (turnID string, err error)
	Remember(ctx context.Context, userID, key, turnID string) error
}

// ChatService runs the chat turn pipeline. Collaborators are injected once
// and shared by concurrent calls; the service holds no per-call state.
type ChatService struct {
	Gate      AuthGate
	Store     TurnStore
	Generator ReplyGenerator

	// Idempotency is optional. When nil, keys are ignored.
	Idempotency IdempotencyStore

	// MaxMessageRunes caps the trimmed message length, in code points of its NFC form.
	MaxMessageRunes int
}

// NewChatService wires a ChatService with the default message limit.
func NewChatService(gate AuthGate, store TurnStore, gen ReplyGenerator) *ChatService {
	return &ChatService{
		Gate:            gate,
		Store:           store,
		Generator:       gen,
		MaxMessageRunes: DefaultMaxMessageRunes,
	}
}

// messageLength counts runes in the NFC form of s, so a character typed as
// base letter plus combining mark counts the same as its precomposed form.
func messageLength(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

// Validate trims userMessage and checks it against the length limit. It
// returns the trimmed text, which is what gets persisted and generated from.
func (s *ChatService) Validate(userMessage string) (string, error) {
	msg := strings.TrimSpace(userMessage)
	if msg == "" {
		return "", ErrEmptyMessage
	}
	limit := s.MaxMessageRunes
	if limit <= 0 {
		limit = DefaultMaxMessageRunes
	}
	if n := messageLength(msg); n > limit {
		return "", fmt.Errorf("%w: %d characters exceeds the limit of %d", ErrMessageTooLong, n, limit)
	}
	return msg, nil
}

// Submit processes one turn and returns the reply correlated with the new
// turn id. Failures are classified as ErrValidation, ErrUnauthorized,
// ErrStore or ErrGeneration.
func (s *ChatService) Submit(ctx context.Context, userMessage string) (*domain.Reply, error) {
	reply, _, err := s.SubmitIdempotent(ctx, userMessage, "")
	return reply, err
}

// SubmitIdempotent is Submit with an optional idempotency key. If key was
// already used by the same user and its turn is complete and still visible,
// that reply is returned with replayed=true and nothing new is created.
// Otherwise the turn is processed normally and, on success, the key is
// pointed at the new turn.
func (s *ChatService) SubmitIdempotent(ctx context.Context, userMessage, key string) (reply *domain.Reply, replayed bool, err error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(attribute.Bool("idempotency.key_present", key != "")),
	)
	defer span.End()

	reply, replayed, err = s.submit(ctx, span, userMessage, key)

	outcome := outcomeOf(err)
	if replayed {
		outcome = OutcomeReplayed
	}
	turnsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("chat.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return reply, replayed, err
}

func (s *ChatService) submit(ctx context.Context, span trace.Span, userMessage, key string) (*domain.Reply, bool, error) {
	const op = "submit"

	// 1) Validate before anything else touches a collaborator.
	msg, err := s.Validate(userMessage)
	if err != nil {
		return nil, false, err
	}

	// 2) Resolve the caller; no turn is created for an unknown caller.
	userID, err := s.Gate.RequireUser(ctx)
	if err == nil && userID == "" {
		err = errors.New("empty user id")
	}
	if err != nil {
		loggerFrom(ctx).Warn().Str("collaborator", CollabAuthGate).Err(err).Msg("submit rejected")
		return nil, false, authFailure(op, err)
	}
	span.SetAttributes(attribute.String("user.id", userID))
	lg := loggerFrom(ctx).With().Str("user_id", userID).Logger()

	// 3) Serve a replay when the key already produced a completed turn.
	if key != "" && s.Idempotency != nil {
		if prev := s.replay(ctx, userID, key); prev != nil {
			lg.Info().Str("turn_id", prev.TurnID).Msg("idempotent replay")
			return prev, true, nil
		}
	}

	// 4) Persist the user message; must commit before generation starts.
	turn, err := s.Store.CreateTurn(ctx, userID, msg)
	if err == nil && (turn == nil || turn.ID == "") {
		err = errors.New("store returned no turn id")
	}
	if err != nil {
		lg.Error().Str("collaborator", CollabMessageStore).Err(err).Msg("create turn failed")
		return nil, false, storeFailure(op, "", err)
	}
	span.SetAttributes(attribute.String("turn.id", turn.ID))
	lg = lg.With().Str("turn_id", turn.ID).Logger()

	// 5) Generate. A failure leaves the turn reply-pending.
	start := time.Now()
	structured, err := s.Generator.Generate(ctx, msg)
	generationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		lg.Error().Str("collaborator", CollabReplyGenerator).Err(err).Msg("reply generation failed; turn left pending")
		return nil, false, generationFailure(op, turn.ID, err)
	}

	// 6) Attach. A failure also leaves the turn reply-pending.
	if err := s.Store.AttachReply(ctx, turn.ID, structured); err != nil {
		lg.Error().Str("collaborator", CollabMessageStore).Err(err).Msg("attach reply failed; turn left pending")
		return nil, false, storeFailure(op, turn.ID, err)
	}

	if key != "" && s.Idempotency != nil {
		if err := s.Idempotency.Remember(ctx, userID, key, turn.ID); err != nil {
			lg.Warn().Err(err).Msg("idempotency record not saved")
		}
	}

	return &domain.Reply{TurnID: turn.ID, StructuredReply: structured}, false, nil
}

// replay returns the stored reply for key, or nil when there is nothing to
// replay. Lookup failures never block normal processing.
func (s *ChatService) replay(ctx context.Context, userID, key string) *domain.Reply {
	turnID, err := s.Idempotency.Lookup(ctx, userID, key)
	if err != nil || turnID == "" {
		return nil
	}
	turn, err := s.Store.GetTurn(ctx, turnID, userID)
	if err != nil || turn.Pending() {
		return nil
	}
	return &domain.Reply{TurnID: turn.ID, StructuredReply: *turn.AIReply}
}

// loggerFrom returns the request-scoped logger stored in ctx by the HTTP
// logging middleware, or the global logger outside a request.
func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
