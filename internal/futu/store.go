package futu

import (
	"sync"
	"time"

	"github.com/coachpo/futubridge/internal/schema"
)

// orderStore is the bridge-side order cache backing the reconciler. It
// indexes by both id spaces because submissions know only the client id
// until the venue acknowledges, while pushes carry only the venue id.
type orderStore struct {
	mu       sync.Mutex
	byVenue  map[string]*schema.Order
	byClient map[string]*schema.Order
}

func newOrderStore() *orderStore {
	return &orderStore{
		byVenue:  make(map[string]*schema.Order),
		byClient: make(map[string]*schema.Order),
	}
}

// ByVenueOrderID implements OrderCache. Returns a copy.
func (s *orderStore) ByVenueOrderID(venueOrderID string) (schema.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order, ok := s.byVenue[venueOrderID]; ok {
		return *order, true
	}
	return schema.Order{}, false
}

// ByClientOrderID implements OrderCache. Returns a copy.
func (s *orderStore) ByClientOrderID(clientOrderID string) (schema.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order, ok := s.byClient[clientOrderID]; ok {
		return *order, true
	}
	return schema.Order{}, false
}

// Track inserts a newly submitted order under its client id.
func (s *orderStore) Track(order schema.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := order
	s.byClient[copied.ClientOrderID] = &copied
	if copied.VenueOrderID != "" {
		s.byVenue[copied.VenueOrderID] = &copied
	}
}

// Bind attaches the venue id the acknowledgement assigned.
func (s *orderStore) Bind(clientOrderID, venueOrderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.byClient[clientOrderID]
	if !ok {
		return
	}
	order.VenueOrderID = venueOrderID
	s.byVenue[venueOrderID] = order
}

// Apply folds an emitted execution event back into the cached order so the
// reconciler's lifecycle gating always sees the latest acknowledged state.
func (s *orderStore) Apply(evt schema.ExecEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.lookupLocked(evt)
	if order == nil {
		return
	}
	if evt.VenueOrderID != "" && order.VenueOrderID == "" {
		order.VenueOrderID = evt.VenueOrderID
		s.byVenue[evt.VenueOrderID] = order
	}
	if evt.Type == schema.EventOrderFilled {
		order.FilledQty = order.FilledQty.Add(evt.FillQty)
		if !evt.FillPrice.IsZero() {
			price := evt.FillPrice
			order.AvgFillPrice = &price
		}
	}
	if evt.Status != "" && (order.Status.CanTransition(evt.Status) || order.Status == evt.Status) {
		order.Status = evt.Status
	}
	if evt.TS.IsZero() {
		order.UpdatedAt = time.Now()
	} else {
		order.UpdatedAt = evt.TS
	}
}

func (s *orderStore) lookupLocked(evt schema.ExecEvent) *schema.Order {
	if evt.VenueOrderID != "" {
		if order, ok := s.byVenue[evt.VenueOrderID]; ok {
			return order
		}
	}
	if evt.ClientOrderID != "" {
		if order, ok := s.byClient[evt.ClientOrderID]; ok {
			return order
		}
	}
	return nil
}
