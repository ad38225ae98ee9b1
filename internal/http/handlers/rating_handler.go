// README: Rating handlers: published user and gig stats, admin recompute.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"gigmarket/internal/http/middleware"
	"gigmarket/internal/modules/rating"
	"gigmarket/internal/types"
)

type RatingService interface {
	UserStat(ctx context.Context, subject types.ID, dir rating.Direction) (rating.Stat, error)
	GigStat(ctx context.Context, gigID types.ID) (rating.Stat, error)
	Recompute(ctx context.Context, subject types.ID, dir rating.Direction) (rating.Stat, error)
}

type RatingHandler struct {
	ratings RatingService
}

func NewRatingHandler(ratings RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

func (h *RatingHandler) User(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	st, err := h.ratings.UserStat(c.Request.Context(), types.ID(id), rating.Direction(c.Query("direction")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (h *RatingHandler) Gig(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	st, err := h.ratings.GigStat(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

// Recompute rebuilds a user's stat from stored reviews. Admin only.
func (h *RatingHandler) Recompute(c *gin.Context) {
	if !middleware.CallerActor(c).IsAdmin() {
		writeError(c, http.StatusForbidden, "admin only")
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	st, err := h.ratings.Recompute(c.Request.Context(), types.ID(id), rating.Direction(c.Query("direction")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}
