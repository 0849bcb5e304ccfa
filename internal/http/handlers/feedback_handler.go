package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// LeaveFeedbackRequest is the JSON payload for rating a reply: +1 or -1.
type LeaveFeedbackRequest struct {
	Value int `json:"value" binding:"required,oneof=-1 1" example:"1"`
}

// LeaveFeedback godoc
// @ID          leaveFeedback
// @Summary     Rate a reply
// @Description Records +1 or -1 for the reply of one of the caller's turns. Cleared turns and turns without a reply cannot be rated; each turn is rated at most once.
// @Tags        Feedback
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Turn ID (UUID)"  format(uuid)
// @Param       body  body  handlers.LeaveFeedbackRequest  true  "Feedback payload"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "Turn not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already rated or no reply yet"
// @Failure     500  {object}  handlers.ErrorResponse  "Message store failure"
// @Router      /chat/turns/{id}/feedback [post]
func (h *Handlers) LeaveFeedback(c *gin.Context) {
	turnID := strings.TrimSpace(c.Param("id"))
	if turnID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "turn id required")
		return
	}
	var req LeaveFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value must be -1 or 1")
		return
	}

	if err := h.fbSvc.Leave(c.Request.Context(), turnID, req.Value); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
