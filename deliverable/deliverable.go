package deliverable

import (
	"context"
	"reflect"

	"github.com/google/uuid"
)

// External is the sentinel producer marking pipeline-level inputs. A slot
// declaring External as its expected producer accepts any producer.
const External = "external"

// Deliverable is a typed envelope holding a payload plus routing metadata.
// The runtime type is fixed at construction; producer, consumers and the
// delivery id are set builder-style before registration.
type Deliverable struct {
	id         uuid.UUID
	payload    any
	rtype      Type
	deliveryID string
	producer   string
	consumers  []string
}

// New wraps payload using its dynamic type. Prefer Of when the static type
// matters, e.g. for interface-typed payloads.
func New(payload any) *Deliverable {
	return newDeliverable(payload, TypeOfValue(payload))
}

// Of wraps payload using the static type T.
func Of[T any](payload T) *Deliverable {
	return newDeliverable(payload, TypeOf[T]())
}

// NewTyped wraps payload under an explicit type token.
func NewTyped(payload any, t Type) *Deliverable {
	return newDeliverable(payload, t)
}

func newDeliverable(payload any, t Type) *Deliverable {
	return &Deliverable{
		id:       uuid.New(),
		payload:  payload,
		rtype:    t,
		producer: External,
	}
}

// WithDeliveryID tags the envelope with a disambiguating id.
func (d *Deliverable) WithDeliveryID(id string) *Deliverable {
	d.deliveryID = id
	return d
}

// WithProducer records the emitting factory's class identifier.
func (d *Deliverable) WithProducer(producer string) *Deliverable {
	d.producer = producer
	return d
}

// WithConsumers restricts dispatch to the named factory classes. An empty
// set means any consumer.
func (d *Deliverable) WithConsumers(consumers ...string) *Deliverable {
	d.consumers = append([]string(nil), consumers...)
	return d
}

// ID returns the envelope's instance identifier.
func (d *Deliverable) ID() uuid.UUID { return d.id }

// Get returns the payload.
func (d *Deliverable) Get() any { return d.payload }

// Type returns the runtime type token.
func (d *Deliverable) Type() Type { return d.rtype }

// DeliveryID returns the disambiguating tag, empty by default.
func (d *Deliverable) DeliveryID() string { return d.deliveryID }

// Producer returns the emitting factory's class identifier, or External.
func (d *Deliverable) Producer() string { return d.producer }

// Consumers returns the restricting consumer set, empty meaning any.
func (d *Deliverable) Consumers() []string {
	return append([]string(nil), d.consumers...)
}

// Query describes one input slot's need from the registry's point of view.
// Producer equal to External places no constraint on the origin.
type Query struct {
	Type       Type
	DeliveryID string
	Producer   string
	Consumer   string
}

// Matches applies the matching rule: exact type, equal delivery id, producer
// specificity, consumer scoping.
func (d *Deliverable) Matches(q Query) bool {
	if !d.rtype.Equal(q.Type) {
		return false
	}
	return d.matchesRouting(q)
}

// MatchesAutoLoad reports whether this envelope can satisfy an auto-load
// slot: routing constraints hold and the payload type exposes
// FindAll(ctx) (T, error) where T is the slot type.
func (d *Deliverable) MatchesAutoLoad(q Query) bool {
	if q.Type.IsZero() || d.rtype.IsZero() {
		return false
	}
	if !loadsInto(d.rtype.Reflect(), q.Type.Reflect()) {
		return false
	}
	return d.matchesRouting(q)
}

func (d *Deliverable) matchesRouting(q Query) bool {
	if d.deliveryID != q.DeliveryID {
		return false
	}
	if q.Producer != External && d.producer != q.Producer {
		return false
	}
	if len(d.consumers) > 0 && !d.hasConsumer(q.Consumer) {
		return false
	}
	return true
}

// Scoped reports whether the envelope names q.Consumer explicitly, which
// ranks it above envelopes with an open consumer set during matching.
func (d *Deliverable) Scoped(q Query) bool {
	return len(d.consumers) > 0 && d.hasConsumer(q.Consumer)
}

func (d *Deliverable) hasConsumer(name string) bool {
	for _, c := range d.consumers {
		if c == name {
			return true
		}
	}
	return false
}

// SameSignature reports whether two envelopes are indistinguishable for
// registration purposes: equal type, delivery id, producer and consumer set.
func (d *Deliverable) SameSignature(other *Deliverable) bool {
	if other == nil {
		return false
	}
	if !d.rtype.Equal(other.rtype) || d.deliveryID != other.deliveryID || d.producer != other.producer {
		return false
	}
	if len(d.consumers) != len(other.consumers) {
		return false
	}
	for _, c := range d.consumers {
		if !other.hasConsumer(c) {
			return false
		}
	}
	return true
}

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// loadsInto reports whether rt exposes FindAll(context.Context) (slot, error).
func loadsInto(rt, slot reflect.Type) bool {
	if rt == nil {
		return false
	}
	var fn reflect.Type
	if rt.Kind() == reflect.Interface {
		m, ok := rt.MethodByName("FindAll")
		if !ok {
			return false
		}
		fn = m.Type
	} else {
		m, ok := rt.MethodByName("FindAll")
		if !ok {
			return false
		}
		// Drop the receiver for concrete types.
		in := make([]reflect.Type, 0, m.Type.NumIn()-1)
		for i := 1; i < m.Type.NumIn(); i++ {
			in = append(in, m.Type.In(i))
		}
		out := make([]reflect.Type, 0, m.Type.NumOut())
		for i := 0; i < m.Type.NumOut(); i++ {
			out = append(out, m.Type.Out(i))
		}
		fn = reflect.FuncOf(in, out, false)
	}
	if fn.NumIn() != 1 || fn.In(0) != ctxType {
		return false
	}
	return fn.NumOut() == 2 && fn.Out(0) == slot && fn.Out(1) == errType
}

// load invokes the payload's FindAll with ctx and returns the loaded value.
func (d *Deliverable) load(ctx context.Context) (any, error) {
	m := reflect.ValueOf(d.payload).MethodByName("FindAll")
	results := m.Call([]reflect.Value{reflect.ValueOf(ctx)})
	if err, ok := results[1].Interface().(error); ok && err != nil {
		return nil, err
	}
	return results[0].Interface(), nil
}
