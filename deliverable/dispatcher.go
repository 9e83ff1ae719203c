package deliverable

import (
	"context"
	"fmt"
	"sync"

	"github.com/JorisTruong/setl/internal/logger"
	setlerrors "github.com/JorisTruong/setl/pkg/errors"
)

// Binding is one assignable input slot as seen by the dispatcher: the need,
// the delivery hints, and a closure writing the payload into the consumer.
type Binding struct {
	Query    Query
	Optional bool
	AutoLoad bool
	Assign   func(payload any) error
}

// Dispatcher is the runtime registry of deliverables. Registration order is
// preserved; the newest envelope wins among equally specific matches.
type Dispatcher struct {
	mu       sync.RWMutex
	registry []*Deliverable
	log      *logger.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{log: log}
}

// Add appends an envelope to the registry. An envelope with the same
// signature as an existing one is rejected; use Replace to swap it.
func (p *Dispatcher) Add(d *Deliverable) error {
	if d == nil {
		return setlerrors.NewValidationError("deliverable", "deliverable cannot be nil", nil)
	}
	if d.Type().IsZero() {
		return setlerrors.NewValidationError("deliverable", "deliverable has no runtime type", nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, existing := range p.registry {
		if existing.SameSignature(d) {
			return setlerrors.NewValidationError("deliverable",
				fmt.Sprintf("duplicate deliverable %s (deliveryId=%q, producer=%s)", d.Type(), d.DeliveryID(), d.Producer()), nil)
		}
	}

	p.registry = append(p.registry, d)
	p.log.Debug("deliverable registered", "type", d.Type().String(), "producer", d.Producer(), "deliveryId", d.DeliveryID())
	return nil
}

// Replace removes any envelope with the same signature, then appends d. It
// is what factory output collection uses on re-runs.
func (p *Dispatcher) Replace(d *Deliverable) error {
	if d == nil {
		return setlerrors.NewValidationError("deliverable", "deliverable cannot be nil", nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.registry[:0]
	for _, existing := range p.registry {
		if !existing.SameSignature(d) {
			kept = append(kept, existing)
		}
	}
	p.registry = append(kept, d)
	return nil
}

// Resolve finds the unique best match for q. It returns nil when nothing
// matches and an AmbiguousDeliveryError when more than one envelope remains
// after the specificity tie-break. The inspector relies on this strictness.
func (p *Dispatcher) Resolve(q Query) (*Deliverable, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return resolve(p.registry, q, false)
}

// ResolveAutoLoad is Resolve over loader envelopes, see MatchesAutoLoad.
func (p *Dispatcher) ResolveAutoLoad(q Query) (*Deliverable, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return resolve(p.registry, q, true)
}

// best is the lenient runtime variant: among equally specific matches the
// most recently registered wins and the tie is logged instead of raised.
func (p *Dispatcher) best(q Query, autoLoad bool) *Deliverable {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pool := matchPool(p.registry, q, autoLoad)
	if len(pool) == 0 {
		return nil
	}
	if len(pool) > 1 {
		p.log.Warn("ambiguous delivery at dispatch, newest wins",
			"type", q.Type.String(), "deliveryId", q.DeliveryID, "consumer", q.Consumer, "candidates", len(pool))
	}
	return p.registry[pool[len(pool)-1]]
}

func resolve(registry []*Deliverable, q Query, autoLoad bool) (*Deliverable, error) {
	idx, err := ResolveAmong(registry, q, autoLoad)
	if err != nil || idx < 0 {
		return nil, err
	}
	return registry[idx], nil
}

// ResolveAmong applies the matching rule and the specificity tie-break over
// an arbitrary candidate list. It returns the index of the unique best
// match, -1 when nothing matches, and an AmbiguousDeliveryError when more
// than one candidate remains at the highest specificity. The inspector uses
// it against synthetic envelopes standing in for upstream factory outputs.
func ResolveAmong(candidates []*Deliverable, q Query, autoLoad bool) (int, error) {
	pool := matchPool(candidates, q, autoLoad)
	switch len(pool) {
	case 0:
		return -1, nil
	case 1:
		return pool[0], nil
	default:
		return -1, setlerrors.NewAmbiguousDeliveryError(q.Consumer, q.Type.String(), q.DeliveryID, len(pool))
	}
}

// matchPool returns the indices of matching envelopes at the highest
// specificity: consumer-scoped envelopes shadow open ones.
func matchPool(registry []*Deliverable, q Query, autoLoad bool) []int {
	var scoped, open []int
	for i, d := range registry {
		match := d.Matches(q)
		if !match && autoLoad {
			match = d.MatchesAutoLoad(q)
		}
		if !match {
			continue
		}
		if d.Scoped(q) {
			scoped = append(scoped, i)
		} else {
			open = append(open, i)
		}
	}
	if len(scoped) > 0 {
		return scoped
	}
	return open
}

// Dispatch binds the best-matching envelope into every slot. Missing
// optional slots keep their defaults; a missing required slot is fatal and
// should have been caught by inspection.
func (p *Dispatcher) Dispatch(ctx context.Context, bindings []Binding) error {
	for _, b := range bindings {
		if d := p.best(b.Query, false); d != nil {
			if err := b.Assign(d.Get()); err != nil {
				return err
			}
			continue
		}

		if b.AutoLoad {
			if d := p.best(b.Query, true); d != nil {
				payload, err := d.load(ctx)
				if err != nil {
					return fmt.Errorf("auto-load for %s: %w", b.Query.Consumer, err)
				}
				if err := b.Assign(payload); err != nil {
					return err
				}
				continue
			}
		}

		if b.Optional {
			p.log.Debug("optional slot left unset", "type", b.Query.Type.String(), "consumer", b.Query.Consumer)
			continue
		}

		return setlerrors.NewUnsatisfiedInputError(b.Query.Consumer, b.Query.Type.String(), b.Query.DeliveryID, b.Query.Producer)
	}
	return nil
}

// FindByType returns every envelope whose runtime type equals t, in
// registration order. Consumer scoping constrains dispatch, not retrieval.
func (p *Dispatcher) FindByType(t Type) []*Deliverable {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*Deliverable
	for _, d := range p.registry {
		if d.Type().Equal(t) {
			out = append(out, d)
		}
	}
	return out
}

// FindByProducer returns every envelope emitted by the named factory class.
func (p *Dispatcher) FindByProducer(producer string) []*Deliverable {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*Deliverable
	for _, d := range p.registry {
		if d.Producer() == producer {
			out = append(out, d)
		}
	}
	return out
}

// All returns a snapshot of the registry in registration order.
func (p *Dispatcher) All() []*Deliverable {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Deliverable(nil), p.registry...)
}

// Len returns the number of registered envelopes.
func (p *Dispatcher) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.registry)
}
