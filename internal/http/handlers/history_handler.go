package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sickco/sickco-backend/internal/domain"
	"github.com/sickco/sickco-backend/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// HistoryResponse lists turns oldest first. Pagination is present only when
// the request asked for a page.
type HistoryResponse struct {
	Turns      []domain.Turn `json:"turns"`
	Pagination *Pagination   `json:"pagination,omitempty"`
}

// ClearResponse acknowledges a cleared history.
type ClearResponse struct {
	Status string `json:"status" example:"cleared"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageParams returns the requested page, or paged=false when neither page
// nor page_size was given.
func pageParams(c *gin.Context) (page, pageSize int, paged bool) {
	rawPage, hasPage := c.GetQuery("page")
	rawSize, hasSize := c.GetQuery("page_size")
	if !hasPage && !hasSize {
		return 0, 0, false
	}
	page, pageSize = utils.ClampPage(
		utils.AtoiDefault(rawPage, 1),
		utils.AtoiDefault(rawSize, defaultPageSize),
		maxPageSize,
	)
	return page, pageSize, true
}

// History godoc
// @ID          getHistory
// @Summary     List chat history
// @Description Returns the caller's turns oldest first, excluding cleared ones. Turns whose generation failed have no ai_reply. Pass page or page_size to paginate. Supports a weak ETag via If-None-Match and may return 304.
// @Tags        Chat
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"history:3:1700000000000000000:0:0\")
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.HistoryResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Message store failure"
// @Router      /chat/history [get]
func (h *Handlers) History(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize, paged := pageParams(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.histSvc.Stats(ctx); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"history:%d:%d:%d:%d"`, count, ts, page, pageSize)
		c.Header("ETag", etag)
		c.Header("Cache-Control", "private, no-cache")
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	if !paged {
		turns, err := h.histSvc.List(ctx)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusOK, HistoryResponse{Turns: turns})
		return
	}

	turns, total, err := h.histSvc.ListPage(ctx, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, HistoryResponse{
		Turns: turns,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// ClearHistory godoc
// @ID          clearHistory
// @Summary     Clear chat history
// @Description Hides all of the caller's turns from history. Rows are kept. Clearing an empty history succeeds.
// @Tags        Chat
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  handlers.ClearResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Message store failure"
// @Router      /chat/history [delete]
func (h *Handlers) ClearHistory(c *gin.Context) {
	if err := h.histSvc.Clear(c.Request.Context()); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ClearResponse{Status: "cleared"})
}
