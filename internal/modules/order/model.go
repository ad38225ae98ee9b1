// README: Order aggregate, status definitions and the transition table.
package order

import (
	"time"

	"gigmarket/internal/types"
)

type Status string

const (
	StatusNone              Status = "none"
	StatusBooked            Status = "booked"
	StatusAccepted          Status = "accepted"
	StatusInProgress        Status = "in_progress"
	StatusInReview          Status = "in_review"
	StatusRevisionRequested Status = "revision_requested"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
)

// AllStatuses lists every persisted status, in lifecycle order.
var AllStatuses = []Status{
	StatusBooked,
	StatusAccepted,
	StatusInProgress,
	StatusInReview,
	StatusRevisionRequested,
	StatusCompleted,
	StatusCancelled,
}

func ParseStatus(v string) (Status, bool) {
	for _, s := range AllStatuses {
		if string(s) == v {
			return s, true
		}
	}
	return "", false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type DeliveryFile struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Order struct {
	ID               types.ID
	GigID            types.ID
	ClientID         types.ID
	ProviderID       types.ID
	Price            types.Money
	Status           Status
	StatusVersion    int
	PaymentRef       string
	Deadline         time.Time
	DeliveryFiles    []DeliveryFile
	DeliveryMessage  string
	RevisionCount    int
	RevisionFeedback *string
	ClientReviewed   bool
	ProviderReviewed bool
	CancelledBy      *types.ID
	CancelReason     *string
	CreatedAt        time.Time
	AcceptedAt       *time.Time
	StartedAt        *time.Time
	DeliveredAt      *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
}

// Reviewed reports whether the given side already left its review.
func (o *Order) Reviewed(p Party) bool {
	switch p {
	case PartyClient:
		return o.ClientReviewed
	case PartyProvider:
		return o.ProviderReviewed
	}
	return false
}

type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorRole  types.Role
	ActorID    *types.ID
	CreatedAt  time.Time
}

// Party is the side of an order an actor resolves to.
type Party string

const (
	PartyNone     Party = ""
	PartyClient   Party = "client"
	PartyProvider Party = "provider"
	PartyAdmin    Party = "admin"
	PartySystem   Party = "system"
)

type Precondition string

const (
	PreNone             Precondition = ""
	PrePaymentConfirmed Precondition = "payment_confirmed"
	PreDeliveryFiles    Precondition = "delivery_files"
	PreFeedback         Precondition = "feedback"
)

// Edge is one row of the transition table.
type Edge struct {
	From         Status
	To           Status
	Parties      []Party
	Precondition Precondition
	// DeliveryOnly edges are reachable through SubmitDelivery only.
	DeliveryOnly bool
}

func (e Edge) Allows(p Party) bool {
	for _, allowed := range e.Parties {
		if allowed == p {
			return true
		}
	}
	return false
}

var cancelParties = []Party{PartyClient, PartyProvider, PartyAdmin}

// Transitions represents the order state flow as data.
var Transitions = []Edge{
	{From: StatusNone, To: StatusBooked, Parties: []Party{PartySystem}, Precondition: PrePaymentConfirmed},
	{From: StatusBooked, To: StatusAccepted, Parties: []Party{PartyProvider}},
	{From: StatusAccepted, To: StatusInProgress, Parties: []Party{PartyProvider}},
	{From: StatusRevisionRequested, To: StatusInProgress, Parties: []Party{PartyProvider}},
	{From: StatusInProgress, To: StatusInReview, Parties: []Party{PartyProvider}, Precondition: PreDeliveryFiles, DeliveryOnly: true},
	{From: StatusInReview, To: StatusRevisionRequested, Parties: []Party{PartyClient}, Precondition: PreFeedback},
	{From: StatusInReview, To: StatusCompleted, Parties: []Party{PartyClient}},
	{From: StatusBooked, To: StatusCancelled, Parties: cancelParties},
	{From: StatusAccepted, To: StatusCancelled, Parties: cancelParties},
	{From: StatusInProgress, To: StatusCancelled, Parties: cancelParties},
	{From: StatusInReview, To: StatusCancelled, Parties: cancelParties},
	{From: StatusRevisionRequested, To: StatusCancelled, Parties: cancelParties},
}

func FindEdge(from, to Status) (Edge, bool) {
	for _, e := range Transitions {
		if e.From == from && e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}

func deliveryOnly(to Status) bool {
	for _, e := range Transitions {
		if e.To == to && e.DeliveryOnly {
			return true
		}
	}
	return false
}
