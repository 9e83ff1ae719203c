package factory

import (
	"context"
	"reflect"

	"github.com/JorisTruong/setl/deliverable"
)

// Factory is the unit of work users implement. The pipeline drives the
// lifecycle Read, Process, Write in order, then takes the produced value
// through Get and republishes it as a deliverable.
type Factory interface {
	Read(ctx context.Context) error
	Process(ctx context.Context) error
	Write(ctx context.Context) error
	Get() any
	Declare() Declaration
}

// Declaration is a factory's wiring contract: what it produces and which
// slots it consumes. It replaces the annotation surface of reflective hosts;
// the descriptor builder turns it into bound slots once per instance.
type Declaration struct {
	Output Output
	Inputs []Input
}

// Output describes the produced value. Type is mandatory; DeliveryID and
// Consumers qualify the emitted envelope.
type Output struct {
	Type       deliverable.Type
	DeliveryID string
	Consumers  []string
}

// Input declares one delivery sink. Exactly one of Target (a pointer into
// the factory, field form) or Setter (a single-argument method value, setter
// form) carries the assignment strategy. Producer left empty accepts any
// origin. Type overrides the derived slot type when set.
type Input struct {
	Target     any
	Setter     any
	Type       deliverable.Type
	DeliveryID string
	Producer   string
	Optional   bool
	AutoLoad   bool
}

// Name returns the factory's class identifier: its concrete type name,
// pointer indirection stripped. Producer and consumer scoping match on it.
func Name(f Factory) string {
	if f == nil {
		return ""
	}
	t := reflect.TypeOf(f)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}
