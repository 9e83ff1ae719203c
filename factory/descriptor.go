package factory

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/JorisTruong/setl/deliverable"
	setlerrors "github.com/JorisTruong/setl/pkg/errors"
)

// Slot is one reflected input of a factory instance, ready for matching and
// assignment. Slots are immutable once built.
type Slot struct {
	Type       deliverable.Type
	DeliveryID string
	Producer   string
	Consumer   string
	Optional   bool
	AutoLoad   bool

	assign func(payload any) error
}

// Query expresses the slot as a registry lookup.
func (s Slot) Query() deliverable.Query {
	return deliverable.Query{
		Type:       s.Type,
		DeliveryID: s.DeliveryID,
		Producer:   s.Producer,
		Consumer:   s.Consumer,
	}
}

// Assign writes the payload into the owning factory instance.
func (s Slot) Assign(payload any) error {
	return s.assign(payload)
}

// Binding expresses the slot as a dispatcher binding.
func (s Slot) Binding() deliverable.Binding {
	return deliverable.Binding{
		Query:    s.Query(),
		Optional: s.Optional,
		AutoLoad: s.AutoLoad,
		Assign:   s.assign,
	}
}

// Descriptor is the reflected view of a factory instance: its identity, its
// declared output and its bound input slots. Built once, then shared freely.
type Descriptor struct {
	ID     uuid.UUID
	Name   string
	Output Output
	Slots  []Slot
}

// Bindings returns every slot as a dispatcher binding, in declaration order.
func (d *Descriptor) Bindings() []deliverable.Binding {
	out := make([]deliverable.Binding, len(d.Slots))
	for i, s := range d.Slots {
		out[i] = s.Binding()
	}
	return out
}

// Describe reflects over a factory's declaration and produces its
// descriptor. A missing output type or a malformed sink is fatal here, so
// wiring mistakes surface at registration rather than mid-run.
func Describe(f Factory) (*Descriptor, error) {
	if f == nil {
		return nil, setlerrors.NewDescriptorError("", "factory cannot be nil", nil)
	}

	name := Name(f)
	decl := f.Declare()

	if decl.Output.Type.IsZero() {
		return nil, setlerrors.NewDescriptorError(name, "factory declares no output type", nil)
	}

	slots := make([]Slot, 0, len(decl.Inputs))
	for i, in := range decl.Inputs {
		slot, err := buildSlot(name, i, in)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}

	return &Descriptor{
		ID:     uuid.New(),
		Name:   name,
		Output: decl.Output,
		Slots:  slots,
	}, nil
}

func buildSlot(factory string, index int, in Input) (Slot, error) {
	producer := in.Producer
	if producer == "" {
		producer = deliverable.External
	}

	slot := Slot{
		DeliveryID: in.DeliveryID,
		Producer:   producer,
		Consumer:   factory,
		Optional:   in.Optional,
		AutoLoad:   in.AutoLoad,
	}

	switch {
	case in.Target != nil && in.Setter != nil:
		return Slot{}, setlerrors.NewDescriptorError(factory,
			fmt.Sprintf("input %d declares both a target and a setter", index), nil)

	case in.Target != nil:
		target := reflect.ValueOf(in.Target)
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return Slot{}, setlerrors.NewDescriptorError(factory,
				fmt.Sprintf("input %d target must be a non-nil pointer", index), nil)
		}
		field := target.Elem()
		slot.Type = deliverable.FromReflect(field.Type())
		slot.assign = func(payload any) error {
			return assignValue(field, payload)
		}

	case in.Setter != nil:
		setter := reflect.ValueOf(in.Setter)
		if setter.Kind() != reflect.Func {
			return Slot{}, setlerrors.NewDescriptorError(factory,
				fmt.Sprintf("input %d setter is not a function", index), nil)
		}
		ft := setter.Type()
		if ft.NumIn() != 1 {
			return Slot{}, setlerrors.NewDescriptorError(factory,
				fmt.Sprintf("input %d setter must take exactly one parameter, has %d", index, ft.NumIn()), nil)
		}
		param := ft.In(0)
		slot.Type = deliverable.FromReflect(param)
		slot.assign = func(payload any) error {
			arg, err := coerce(param, payload)
			if err != nil {
				return err
			}
			results := setter.Call([]reflect.Value{arg})
			if n := len(results); n > 0 {
				if err, ok := results[n-1].Interface().(error); ok && err != nil {
					return err
				}
			}
			return nil
		}

	default:
		return Slot{}, setlerrors.NewDescriptorError(factory,
			fmt.Sprintf("input %d declares neither a target nor a setter", index), nil)
	}

	if !in.Type.IsZero() {
		slot.Type = in.Type
	}
	return slot, nil
}

func assignValue(field reflect.Value, payload any) error {
	v, err := coerce(field.Type(), payload)
	if err != nil {
		return err
	}
	field.Set(v)
	return nil
}

// coerce produces a value of type t from payload, converting between
// compatible representations so wrapped primitives assign cleanly.
func coerce(t reflect.Type, payload any) (reflect.Value, error) {
	if payload == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(payload)
	switch {
	case v.Type().AssignableTo(t):
		return v, nil
	case v.Type().ConvertibleTo(t):
		return v.Convert(t), nil
	default:
		return reflect.Value{}, fmt.Errorf("cannot assign %s to slot of type %s", v.Type(), t)
	}
}
