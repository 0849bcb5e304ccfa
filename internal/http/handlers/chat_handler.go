package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sickco/sickco-backend/internal/http/middleware"
)

// SubmitRequest is the JSON payload for a chat submission. Trimming and the
// length limit are enforced by the service.
type SubmitRequest struct {
	UserMessage string `json:"user_message" example:"I've had a headache and a mild fever since yesterday."`
}

// Submit godoc
// @ID          submitChat
// @Summary     Send a message
// @Description Stores the message, asks the reply generator for a structured reply and returns it with the turn id. A failed generation leaves the turn without a reply; nothing is retried. With an Idempotency-Key that already produced a completed turn, that reply is returned again and Idempotency-Replayed is set.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false  "Client key for safe retries"  example(6f1c2a7e-2f8a-4c1b-9f4e-0b9d6c3a1e55)
// @Param       body             body    handlers.SubmitRequest  true  "Message"
//
// @Success     200  {object}  domain.Reply
// @Header      200  {string}  Idempotency-Replayed  "true when the reply was replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Empty or too long message"
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Message store failure"
// @Failure     502  {object}  handlers.ErrorResponse  "Reply generation failed"
// @Router      /chat [post]
func (h *Handlers) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	reply, replayed, err := h.chatSvc.SubmitIdempotent(c.Request.Context(), req.UserMessage, key)
	if err != nil {
		failErr(c, err)
		return
	}
	if replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
	}
	ok(c, http.StatusOK, reply)
}
