package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"gigmarket/internal/modules/gig"
	"gigmarket/internal/modules/notification"
	"gigmarket/internal/types"
)

// memRepo keeps orders in memory and honours the compare-and-swap contract of Store.
type memRepo struct {
	mu       sync.Mutex
	orders   map[types.ID]*Order
	events   []Event
	payments map[string]bool
	// beforeUpdate lets a test move the order between the read and the write.
	beforeUpdate func(o *Order)
}

func newMemRepo() *memRepo {
	return &memRepo{orders: map[types.ID]*Order{}, payments: map[string]bool{}}
}

func (r *memRepo) Create(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.payments[o.PaymentRef] {
		return ErrConflict
	}
	r.payments[o.PaymentRef] = true
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *memRepo) Get(_ context.Context, id types.ID) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) ListByParticipant(_ context.Context, userID types.ID, limit int) ([]*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Order
	for _, o := range r.orders {
		if o.ClientID == userID || o.ProviderID == userID {
			cp := *o
			out = append(out, &cp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) ListRecent(_ context.Context, limit int) ([]*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Order
	for _, o := range r.orders {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) ListEvents(_ context.Context, id types.ID) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.OrderID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, u StatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[u.ID]
	if !ok {
		return false, nil
	}
	if r.beforeUpdate != nil {
		r.beforeUpdate(o)
		r.beforeUpdate = nil
	}
	if o.Status != u.From || o.StatusVersion != u.Version {
		return false, nil
	}
	updated := u.applyTo(*o, time.Now())
	r.orders[u.ID] = &updated
	return true, nil
}

func (r *memRepo) AppendEvent(ctx context.Context, e *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = int64(len(r.events) + 1)
	r.events = append(r.events, *e)
	return nil
}

func (r *memRepo) SetReviewed(_ context.Context, id types.ID, p Party, reviewed bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, nil
	}
	switch p {
	case PartyClient:
		if o.ClientReviewed == reviewed {
			return false, nil
		}
		o.ClientReviewed = reviewed
	case PartyProvider:
		if o.ProviderReviewed == reviewed {
			return false, nil
		}
		o.ProviderReviewed = reviewed
	}
	return true, nil
}

// put stores an order directly in the given status, bypassing the state machine.
func (r *memRepo) put(o Order) *Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := o
	r.orders[o.ID] = &cp
	r.payments[o.PaymentRef] = true
	return &cp
}

type stubGigs map[types.ID]*gig.Gig

func (s stubGigs) Get(_ context.Context, id types.ID) (*gig.Gig, error) {
	g, ok := s[id]
	if !ok {
		return nil, gig.ErrNotFound
	}
	return g, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Intent
	err  error
}

func (n *recordingNotifier) Emit(ctx context.Context, in notification.Intent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, in)
	return nil
}

func (n *recordingNotifier) intents() []notification.Intent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.Intent(nil), n.sent...)
}

type memGuard struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (g *memGuard) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys == nil {
		g.keys = map[string]bool{}
	}
	if g.keys[key] {
		return false, nil
	}
	g.keys[key] = true
	return true, nil
}

func (g *memGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}

type stubFiles struct {
	err     error
	checked []string
}

func (f *stubFiles) Verify(_ context.Context, ids []string) error {
	f.checked = append(f.checked, ids...)
	return f.err
}

const (
	testClient   types.ID = "client-1"
	testProvider types.ID = "provider-1"
	testGig      types.ID = "gig-1"
)

var (
	clientActor   = types.Actor{ID: testClient, Role: types.RoleClient}
	providerActor = types.Actor{ID: testProvider, Role: types.RoleProvider}
	adminActor    = types.Actor{ID: "admin-1", Role: types.RoleAdmin}
	strangerActor = types.Actor{ID: "client-2", Role: types.RoleClient}
)

type harness struct {
	svc    *Service
	repo   *memRepo
	notify *recordingNotifier
	files  *stubFiles
}

func newHarness() *harness {
	h := &harness{
		repo:   newMemRepo(),
		notify: &recordingNotifier{},
		files:  &stubFiles{},
	}
	h.svc = NewService(Deps{
		Repo: h.repo,
		Gigs: stubGigs{
			testGig: {ID: testGig, ProviderID: testProvider, Title: "Logo design", DeliveryDays: 3,
				Price: types.Money{Amount: 5000, Currency: "USD"}},
		},
		Notifier:    h.notify,
		Files:       h.files,
		Idempotency: &memGuard{},
	})
	return h
}

// orderIn seeds an order already sitting in the given status.
func (h *harness) orderIn(st Status) *Order {
	return h.repo.put(Order{
		ID:            types.NewID(),
		GigID:         testGig,
		ClientID:      testClient,
		ProviderID:    testProvider,
		Price:         types.Money{Amount: 5000, Currency: "USD"},
		Status:        st,
		StatusVersion: 3,
		PaymentRef:    "pi_" + string(types.NewID()),
		Deadline:      time.Now().Add(72 * time.Hour),
		CreatedAt:     time.Now(),
	})
}

var sampleFiles = []DeliveryFile{{ID: "deliveries/logo.png", URL: "https://cdn.example.com/logo.png"}}
