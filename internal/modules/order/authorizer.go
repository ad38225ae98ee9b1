// README: Transition authorization over the declarative table; pure, no I/O.
package order

import (
	"fmt"
	"strings"

	"gigmarket/internal/modules/notification"
	"gigmarket/internal/types"
)

// Payload carries edge-specific request data.
type Payload struct {
	Feedback string
	Reason   string
	Files    []DeliveryFile
	Message  string
}

// Decision is the outcome of a successful authorization.
type Decision struct {
	Edge    Edge
	Party   Party
	Intents []notification.Intent
}

// ResolveParty maps an actor onto the side of the order it acts for.
func ResolveParty(actor types.Actor, o *Order) Party {
	switch {
	case actor.Role == types.RoleSystem:
		return PartySystem
	case actor.IsAdmin():
		return PartyAdmin
	case actor.Role == types.RoleClient && actor.ID != "" && actor.ID == o.ClientID:
		return PartyClient
	case actor.Role == types.RoleProvider && actor.ID != "" && actor.ID == o.ProviderID:
		return PartyProvider
	}
	return PartyNone
}

// Authorize checks that (o.Status -> to) is an edge, that the actor may take it and
// that its precondition holds, and synthesizes the notifications it should produce.
// Admins pass every party check but not the edge existence check.
func Authorize(actor types.Actor, o *Order, to Status, p Payload) (Decision, error) {
	edge, ok := FindEdge(o.Status, to)
	if !ok {
		return Decision{}, ErrInvalidTransition
	}
	party := ResolveParty(actor, o)
	if party == PartyNone || (party != PartyAdmin && !edge.Allows(party)) {
		return Decision{}, ErrForbidden
	}
	if party == PartyAdmin && edge.Precondition == PrePaymentConfirmed {
		// booking is created by the payment flow only
		return Decision{}, ErrForbidden
	}
	if err := checkPrecondition(edge, p); err != nil {
		return Decision{}, err
	}
	return Decision{Edge: edge, Party: party, Intents: intentsFor(o, edge, party, p)}, nil
}

func checkPrecondition(e Edge, p Payload) error {
	switch e.Precondition {
	case PreFeedback:
		if strings.TrimSpace(p.Feedback) == "" {
			return fmt.Errorf("%w: feedback is required to request a revision", ErrInvalidState)
		}
	case PreDeliveryFiles:
		if len(p.Files) == 0 {
			return fmt.Errorf("%w: delivery requires at least one file", ErrInvalidState)
		}
		for _, f := range p.Files {
			if f.ID == "" || f.URL == "" {
				return fmt.Errorf("%w: delivery file needs id and url", ErrInvalidState)
			}
		}
	}
	return nil
}

// intentsFor addresses the party that did not trigger the edge. An admin acting on a
// non-cancel edge stands in for the edge's own party; an admin cancel notifies both sides.
func intentsFor(o *Order, e Edge, party Party, p Payload) []notification.Intent {
	link := "/orders/" + string(o.ID)
	build := func(to types.ID, kind, msg string) notification.Intent {
		return notification.Intent{RecipientID: to, Type: kind, Message: msg, Link: link}
	}

	switch e.To {
	case StatusBooked:
		return []notification.Intent{build(o.ProviderID, notification.TypeOrderBooked, "You have received a new order")}
	case StatusAccepted:
		return []notification.Intent{build(o.ClientID, notification.TypeOrderAccepted, "Your order has been accepted by the provider")}
	case StatusInProgress:
		msg := "Work on your order has started"
		if e.From == StatusRevisionRequested {
			msg = "The provider started working on your revision request"
		}
		return []notification.Intent{build(o.ClientID, notification.TypeOrderStarted, msg)}
	case StatusInReview:
		return []notification.Intent{build(o.ClientID, notification.TypeOrderDelivered, "Your order has been delivered and is ready for review")}
	case StatusRevisionRequested:
		msg := "The client requested a revision: " + strings.TrimSpace(p.Feedback)
		return []notification.Intent{build(o.ProviderID, notification.TypeRevisionRequested, msg)}
	case StatusCompleted:
		return []notification.Intent{build(o.ProviderID, notification.TypeOrderCompleted, "The client marked the order as completed")}
	case StatusCancelled:
		switch party {
		case PartyClient:
			return []notification.Intent{build(o.ProviderID, notification.TypeOrderCancelled, cancelMessage("the client", p.Reason))}
		case PartyProvider:
			return []notification.Intent{build(o.ClientID, notification.TypeOrderCancelled, cancelMessage("the provider", p.Reason))}
		default:
			msg := cancelMessage("an administrator", p.Reason)
			return []notification.Intent{
				build(o.ClientID, notification.TypeOrderCancelled, msg),
				build(o.ProviderID, notification.TypeOrderCancelled, msg),
			}
		}
	}
	return nil
}

func cancelMessage(by, reason string) string {
	msg := "The order was cancelled by " + by
	if r := strings.TrimSpace(reason); r != "" {
		msg += ": " + r
	}
	return msg
}
