// Package handlers exposes the chat API:
//   - POST   /chat                     (submit a message, get a structured reply)
//   - GET    /chat/history             (list turns, optional pagination, ETag)
//   - DELETE /chat/history             (clear history)
//   - POST   /chat/turns/{id}/feedback (rate a reply)
//
// Handlers are transport-thin: they bind input, call a service and translate
// the result. The caller's identity travels in the request context; handlers
// never read it themselves.
package handlers

import (
	"context"
	"time"

	"github.com/sickco/sickco-backend/internal/domain"
)

// ChatService submits one chat turn.
type ChatService interface {
	SubmitIdempotent(ctx context.Context, userMessage, key string) (*domain.Reply, bool, error)
}

// HistoryService reads and clears the caller's history.
type HistoryService interface {
	List(ctx context.Context) ([]domain.Turn, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Turn, int64, error)
	Stats(ctx context.Context) (int64, *time.Time, error)
	Clear(ctx context.Context) error
}

// FeedbackService rates a turn's reply.
type FeedbackService interface {
	Leave(ctx context.Context, turnID string, value int) error
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	chatSvc ChatService
	histSvc HistoryService
	fbSvc   FeedbackService
}

// New constructs Handlers bound to the given services.
func New(chatSvc ChatService, histSvc HistoryService, fbSvc FeedbackService) *Handlers {
	return &Handlers{chatSvc: chatSvc, histSvc: histSvc, fbSvc: fbSvc}
}
