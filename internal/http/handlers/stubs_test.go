package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"

	"gigmarket/internal/http/handlers"
	httpmiddleware "gigmarket/internal/http/middleware"
	"gigmarket/internal/infra"
	"gigmarket/internal/modules/notification"
	"gigmarket/internal/modules/order"
	"gigmarket/internal/modules/payment"
	"gigmarket/internal/modules/rating"
	"gigmarket/internal/modules/review"
	"gigmarket/internal/types"
)

// stubTokenVerifier is a test double for infra.TokenVerifier.
type stubTokenVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

func makeVerifier(uid, role string) *stubTokenVerifier {
	claims := map[string]interface{}{}
	if role != "" {
		claims["role"] = role
	}
	return &stubTokenVerifier{token: &infra.FirebaseToken{UID: uid, Claims: claims}}
}

type stubOrders struct {
	order    *order.Order
	err      error
	lastCmd  order.TransitionCommand
	lastDlv  order.DeliveryCommand
	lastActr types.Actor
	events   []order.Event
}

func (s *stubOrders) GetFor(_ context.Context, _ types.ID, actor types.Actor) (*order.Order, error) {
	s.lastActr = actor
	return s.order, s.err
}

func (s *stubOrders) ListFor(_ context.Context, actor types.Actor, _ int) ([]*order.Order, error) {
	s.lastActr = actor
	if s.err != nil {
		return nil, s.err
	}
	return []*order.Order{s.order}, nil
}

func (s *stubOrders) Transition(_ context.Context, cmd order.TransitionCommand) (*order.Order, error) {
	s.lastCmd = cmd
	return s.order, s.err
}

func (s *stubOrders) SubmitDelivery(_ context.Context, cmd order.DeliveryCommand) (*order.Order, error) {
	s.lastDlv = cmd
	return s.order, s.err
}

func (s *stubOrders) EventsFor(_ context.Context, _ types.ID, actor types.Actor) ([]order.Event, error) {
	s.lastActr = actor
	return s.events, s.err
}

type stubSigner struct{}

func (stubSigner) DownloadURL(_ context.Context, id string) (string, time.Time, error) {
	return "https://minio.local/deliveries/" + id + "?sig=1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

type stubReviews struct {
	review  *review.Review
	err     error
	submit  review.SubmitCommand
	update  review.UpdateCommand
	deleted types.ID
	listDir rating.Direction
}

func (s *stubReviews) Submit(_ context.Context, cmd review.SubmitCommand) (*review.Review, error) {
	s.submit = cmd
	return s.review, s.err
}

func (s *stubReviews) Update(_ context.Context, cmd review.UpdateCommand) (*review.Review, error) {
	s.update = cmd
	return s.review, s.err
}

func (s *stubReviews) Delete(_ context.Context, id types.ID, _ types.Actor) error {
	s.deleted = id
	return s.err
}

func (s *stubReviews) ListForUser(_ context.Context, _ types.ID, dir rating.Direction, _ int) ([]*review.Review, error) {
	s.listDir = dir
	return nil, s.err
}

type stubRatings struct {
	stat       rating.Stat
	err        error
	recomputed bool
}

func (s *stubRatings) UserStat(context.Context, types.ID, rating.Direction) (rating.Stat, error) {
	return s.stat, s.err
}

func (s *stubRatings) GigStat(context.Context, types.ID) (rating.Stat, error) {
	return s.stat, s.err
}

func (s *stubRatings) Recompute(context.Context, types.ID, rating.Direction) (rating.Stat, error) {
	s.recomputed = true
	return s.stat, s.err
}

type stubInbox struct {
	recipient types.ID
	unread    bool
	err       error
}

func (s *stubInbox) List(_ context.Context, recipient types.ID, unreadOnly bool, _ int) ([]notification.Notification, error) {
	s.recipient, s.unread = recipient, unreadOnly
	return []notification.Notification{{ID: "n-1", RecipientID: recipient, Type: notification.TypeOrderAccepted}}, s.err
}

func (s *stubInbox) MarkRead(_ context.Context, _, recipient types.ID) error {
	s.recipient = recipient
	return s.err
}

type stubWebhooks struct {
	signature string
	payload   []byte
	res       payment.Result
	err       error
}

func (s *stubWebhooks) Handle(_ context.Context, payload []byte, signature string) (payment.Result, error) {
	s.payload, s.signature = payload, signature
	return s.res, s.err
}

// buildTestRouter wires a minimal Gin engine with the auth middleware and the handlers under test.
func buildTestRouter(verifier infra.TokenVerifier, orders *stubOrders, signer handlers.DownloadSigner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(httpmiddleware.Auth(verifier))
	h := handlers.NewOrderHandler(orders, signer)
	r.GET("/api/orders", h.List)
	r.GET("/api/orders/:id", h.Get)
	r.GET("/api/orders/:id/events", h.Events)
	r.PATCH("/api/orders/:id/status", h.UpdateStatus)
	r.POST("/api/orders/:id/delivery", h.SubmitDelivery)
	r.GET("/api/orders/:id/delivery/:fileId", h.DownloadFile)
	return r
}

func doRequest(r http.Handler, method, path string, body interface{}, authHeader string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleOrder() *order.Order {
	return &order.Order{
		ID:            "order-1",
		GigID:         "gig-1",
		ClientID:      "client-1",
		ProviderID:    "provider-1",
		Price:         types.Money{Amount: 5000, Currency: "USD"},
		Status:        order.StatusInReview,
		StatusVersion: 4,
		DeliveryFiles: []order.DeliveryFile{{ID: "file-1", URL: "https://cdn.local/file-1"}},
	}
}
