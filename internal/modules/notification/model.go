// README: Notification intents, persisted notifications and their type constants.
package notification

import (
	"errors"
	"time"

	"gigmarket/internal/types"
)

var (
	ErrNotFound   = errors.New("notification not found")
	ErrBadRequest = errors.New("bad request")
	ErrDuplicate  = errors.New("notification already emitted")
)

const (
	TypeOrderBooked       = "order_booked"
	TypeOrderAccepted     = "order_accepted"
	TypeOrderStarted      = "order_started"
	TypeOrderDelivered    = "order_delivered"
	TypeRevisionRequested = "revision_requested"
	TypeOrderCompleted    = "order_completed"
	TypeOrderCancelled    = "order_cancelled"
	TypeReviewReceived    = "review_received"
)

// Intent is what a state change asks to be delivered.
// Key identifies the logical event; two intents with the same key are one notification.
type Intent struct {
	RecipientID types.ID `json:"recipient_id"`
	Type        string   `json:"type"`
	Message     string   `json:"message"`
	Link        string   `json:"link"`
	Key         string   `json:"key,omitempty"`
}

type Notification struct {
	ID          types.ID  `json:"id"`
	RecipientID types.ID  `json:"recipient_id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Link        string    `json:"link"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}
