package futu

import (
	"context"
	"sync"

	"github.com/coachpo/futubridge/internal/observability"
	"github.com/coachpo/futubridge/internal/opend"
	"github.com/coachpo/futubridge/internal/schema"
)

// Instrument is the static definition of one tradable security.
type Instrument struct {
	ID      schema.InstrumentID
	Name    string
	LotSize int32
}

// InstrumentProvider lazily resolves and caches instrument definitions.
// Resolution is best effort: a venue that cannot describe a code does not
// block trading on it, the caller simply receives no definition.
type InstrumentProvider struct {
	client opend.Client

	mu      sync.Mutex
	cache   map[schema.InstrumentID]Instrument
	missing map[schema.InstrumentID]struct{}
}

// NewInstrumentProvider builds a provider over the shared transport.
func NewInstrumentProvider(client opend.Client) *InstrumentProvider {
	return &InstrumentProvider{
		client:  client,
		cache:   make(map[schema.InstrumentID]Instrument),
		missing: make(map[schema.InstrumentID]struct{}),
	}
}

// Ensure resolves the instrument for a quote market and code, consulting
// the cache first. Negative results are cached so an unknown code is asked
// of the venue only once.
func (p *InstrumentProvider) Ensure(ctx context.Context, market schema.QotMarket, code string) (Instrument, bool) {
	id := schema.NewInstrumentID(market, code)
	if id.IsZero() {
		return Instrument{}, false
	}

	p.mu.Lock()
	if inst, ok := p.cache[id]; ok {
		p.mu.Unlock()
		return inst, true
	}
	if _, ok := p.missing[id]; ok {
		p.mu.Unlock()
		return Instrument{}, false
	}
	p.mu.Unlock()

	rec, err := p.client.GetSecurityStatic(ctx, int32(market), code)
	if err != nil || rec == nil {
		if err != nil {
			observability.Log().Debug("instrument lookup failed",
				observability.F("instrument", id.String()),
				observability.F("error", err.Error()))
		}
		p.mu.Lock()
		p.missing[id] = struct{}{}
		p.mu.Unlock()
		return Instrument{}, false
	}

	inst := Instrument{ID: id, Name: rec.Name, LotSize: rec.LotSize}
	p.mu.Lock()
	p.cache[id] = inst
	p.mu.Unlock()
	return inst, true
}

// Cached returns the definition without touching the venue.
func (p *InstrumentProvider) Cached(id schema.InstrumentID) (Instrument, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.cache[id]
	return inst, ok
}
