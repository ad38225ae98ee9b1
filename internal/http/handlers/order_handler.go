// README: Order handlers: listing, status changes, deliveries and delivery downloads.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gigmarket/internal/http/middleware"
	"gigmarket/internal/modules/order"
	"gigmarket/internal/types"
)

type OrderService interface {
	GetFor(ctx context.Context, id types.ID, actor types.Actor) (*order.Order, error)
	ListFor(ctx context.Context, actor types.Actor, limit int) ([]*order.Order, error)
	Transition(ctx context.Context, cmd order.TransitionCommand) (*order.Order, error)
	SubmitDelivery(ctx context.Context, cmd order.DeliveryCommand) (*order.Order, error)
	EventsFor(ctx context.Context, id types.ID, actor types.Actor) ([]order.Event, error)
}

// DownloadSigner presigns delivery downloads; nil serves the stored file URL as is.
type DownloadSigner interface {
	DownloadURL(ctx context.Context, fileID string) (string, time.Time, error)
}

type OrderHandler struct {
	orders OrderService
	files  DownloadSigner
}

func NewOrderHandler(orders OrderService, files DownloadSigner) *OrderHandler {
	return &OrderHandler{orders: orders, files: files}
}

type orderView struct {
	ID               types.ID             `json:"id"`
	GigID            types.ID             `json:"gig_id"`
	ClientID         types.ID             `json:"client_id"`
	ProviderID       types.ID             `json:"provider_id"`
	Price            types.Money          `json:"price"`
	Status           order.Status         `json:"status"`
	StatusVersion    int                  `json:"status_version"`
	Deadline         time.Time            `json:"deadline"`
	DeliveryFiles    []order.DeliveryFile `json:"delivery_files"`
	DeliveryMessage  string               `json:"delivery_message,omitempty"`
	RevisionCount    int                  `json:"revision_count"`
	RevisionFeedback *string              `json:"revision_feedback,omitempty"`
	ClientReviewed   bool                 `json:"client_reviewed"`
	ProviderReviewed bool                 `json:"provider_reviewed"`
	CancelledBy      *types.ID            `json:"cancelled_by,omitempty"`
	CancelReason     *string              `json:"cancel_reason,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	AcceptedAt       *time.Time           `json:"accepted_at,omitempty"`
	StartedAt        *time.Time           `json:"started_at,omitempty"`
	DeliveredAt      *time.Time           `json:"delivered_at,omitempty"`
	CompletedAt      *time.Time           `json:"completed_at,omitempty"`
	CancelledAt      *time.Time           `json:"cancelled_at,omitempty"`
}

func viewOrder(o *order.Order) orderView {
	files := o.DeliveryFiles
	if files == nil {
		files = []order.DeliveryFile{}
	}
	return orderView{
		ID:               o.ID,
		GigID:            o.GigID,
		ClientID:         o.ClientID,
		ProviderID:       o.ProviderID,
		Price:            o.Price,
		Status:           o.Status,
		StatusVersion:    o.StatusVersion,
		Deadline:         o.Deadline,
		DeliveryFiles:    files,
		DeliveryMessage:  o.DeliveryMessage,
		RevisionCount:    o.RevisionCount,
		RevisionFeedback: o.RevisionFeedback,
		ClientReviewed:   o.ClientReviewed,
		ProviderReviewed: o.ProviderReviewed,
		CancelledBy:      o.CancelledBy,
		CancelReason:     o.CancelReason,
		CreatedAt:        o.CreatedAt,
		AcceptedAt:       o.AcceptedAt,
		StartedAt:        o.StartedAt,
		DeliveredAt:      o.DeliveredAt,
		CompletedAt:      o.CompletedAt,
		CancelledAt:      o.CancelledAt,
	}
}

func (h *OrderHandler) List(c *gin.Context) {
	list, err := h.orders.ListFor(c.Request.Context(), middleware.CallerActor(c), queryLimit(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]orderView, 0, len(list))
	for _, o := range list {
		out = append(out, viewOrder(o))
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": out})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.GetFor(c.Request.Context(), types.ID(id), middleware.CallerActor(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOrder(o))
}

type eventView struct {
	From      order.Status `json:"from_status"`
	To        order.Status `json:"to_status"`
	ActorRole types.Role   `json:"actor_role"`
	ActorID   *types.ID    `json:"actor_id,omitempty"`
	At        time.Time    `json:"created_at"`
}

// Events returns the status history of an order, oldest first.
func (h *OrderHandler) Events(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	events, err := h.orders.EventsFor(c.Request.Context(), types.ID(id), middleware.CallerActor(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, eventView{From: e.FromStatus, To: e.ToStatus, ActorRole: e.ActorRole, ActorID: e.ActorID, At: e.CreatedAt})
	}
	writeJSON(c, http.StatusOK, gin.H{"events": out})
}

type updateStatusReq struct {
	Status   string `json:"status"`
	Feedback string `json:"feedback"`
	Reason   string `json:"reason"`
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	target, ok := order.ParseStatus(req.Status)
	if !ok {
		writeError(c, http.StatusBadRequest, "unknown status")
		return
	}
	o, err := h.orders.Transition(c.Request.Context(), order.TransitionCommand{
		OrderID: types.ID(id),
		Actor:   middleware.CallerActor(c),
		Target:  target,
		Payload: order.Payload{Feedback: req.Feedback, Reason: req.Reason},
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOrder(o))
}

type deliveryReq struct {
	Files   []order.DeliveryFile `json:"files"`
	Message string               `json:"message"`
}

func (h *OrderHandler) SubmitDelivery(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req deliveryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.orders.SubmitDelivery(c.Request.Context(), order.DeliveryCommand{
		OrderID: types.ID(id),
		Actor:   middleware.CallerActor(c),
		Files:   req.Files,
		Message: req.Message,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOrder(o))
}

// DownloadFile returns a link to one delivered file for a party of the order.
func (h *OrderHandler) DownloadFile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	fileID := c.Param("fileId")
	o, err := h.orders.GetFor(c.Request.Context(), types.ID(id), middleware.CallerActor(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	var file *order.DeliveryFile
	for i := range o.DeliveryFiles {
		if o.DeliveryFiles[i].ID == fileID {
			file = &o.DeliveryFiles[i]
			break
		}
	}
	if file == nil {
		writeError(c, http.StatusNotFound, "delivery file not found")
		return
	}
	if h.files == nil {
		writeJSON(c, http.StatusOK, gin.H{"url": file.URL})
		return
	}
	u, exp, err := h.files.DownloadURL(c.Request.Context(), file.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"url": u, "expires_at": exp})
}
