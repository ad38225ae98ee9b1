// README: Review handlers: submit on an order, edit, delete, list per user.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"gigmarket/internal/http/middleware"
	"gigmarket/internal/modules/rating"
	"gigmarket/internal/modules/review"
	"gigmarket/internal/types"
)

type ReviewService interface {
	Submit(ctx context.Context, cmd review.SubmitCommand) (*review.Review, error)
	Update(ctx context.Context, cmd review.UpdateCommand) (*review.Review, error)
	Delete(ctx context.Context, id types.ID, actor types.Actor) error
	ListForUser(ctx context.Context, userID types.ID, dir rating.Direction, limit int) ([]*review.Review, error)
}

type ReviewHandler struct {
	reviews ReviewService
}

func NewReviewHandler(reviews ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

type submitReviewReq struct {
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	Direction string `json:"direction"`
}

func (h *ReviewHandler) Submit(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req submitReviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.reviews.Submit(c.Request.Context(), review.SubmitCommand{
		OrderID:   types.ID(orderID),
		Actor:     middleware.CallerActor(c),
		Rating:    req.Rating,
		Comment:   req.Comment,
		Direction: rating.Direction(req.Direction),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}

type updateReviewReq struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

func (h *ReviewHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateReviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.reviews.Update(c.Request.Context(), review.UpdateCommand{
		ReviewID: types.ID(id),
		Actor:    middleware.CallerActor(c),
		Rating:   req.Rating,
		Comment:  req.Comment,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *ReviewHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.reviews.Delete(c.Request.Context(), types.ID(id), middleware.CallerActor(c)); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ReviewHandler) ListForUser(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.reviews.ListForUser(c.Request.Context(), types.ID(userID), rating.Direction(c.Query("direction")), queryLimit(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if list == nil {
		list = []*review.Review{}
	}
	writeJSON(c, http.StatusOK, gin.H{"reviews": list})
}
