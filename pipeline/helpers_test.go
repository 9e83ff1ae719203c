package pipeline_test

import (
	"context"
	"errors"

	"github.com/JorisTruong/setl/deliverable"
	"github.com/JorisTruong/setl/factory"
)

type product1 struct{ X string }

type product2 struct{ X, Y string }

type container[T any] struct{ Content T }

type container2[T any] struct{ Content T }

// product1Factory turns an external string id into a product1.
type product1Factory struct {
	id         string
	out        product1
	readCalled bool
}

func (f *product1Factory) Read(ctx context.Context) error    { f.readCalled = true; return nil }
func (f *product1Factory) Process(ctx context.Context) error { f.out = product1{X: f.id}; return nil }
func (f *product1Factory) Write(ctx context.Context) error   { return nil }
func (f *product1Factory) Get() any                          { return f.out }
func (f *product1Factory) Declare() factory.Declaration {
	return factory.Declaration{
		Output: factory.Output{Type: deliverable.TypeOf[product1]()},
		Inputs: []factory.Input{{Target: &f.id}},
	}
}

// product2Factory produces a constant product2 without consuming anything.
type product2Factory struct {
	out product2
}

func (f *product2Factory) Read(ctx context.Context) error { return nil }
func (f *product2Factory) Process(ctx context.Context) error {
	f.out = product2{X: "a", Y: "b"}
	return nil
}
func (f *product2Factory) Write(ctx context.Context) error { return nil }
func (f *product2Factory) Get() any                        { return f.out }
func (f *product2Factory) Declare() factory.Declaration {
	return factory.Declaration{
		Output: factory.Output{Type: deliverable.TypeOf[product2]()},
	}
}

// containerFactory wraps a product1 into a container, field-form input.
type containerFactory struct {
	in  product1
	out container[product1]
}

func (f *containerFactory) Read(ctx context.Context) error { return nil }
func (f *containerFactory) Process(ctx context.Context) error {
	f.out = container[product1]{Content: f.in}
	return nil
}
func (f *containerFactory) Write(ctx context.Context) error { return nil }
func (f *containerFactory) Get() any                        { return f.out }
func (f *containerFactory) Declare() factory.Declaration {
	return factory.Declaration{
		Output: factory.Output{Type: deliverable.TypeOf[container[product1]]()},
		Inputs: []factory.Input{{Target: &f.in}},
	}
}

// container2Factory wraps a product2 into a container2, setter-form input.
type container2Factory struct {
	in  product2
	out container2[product2]
}

func (f *container2Factory) SetProduct(p product2) { f.in = p }

func (f *container2Factory) Read(ctx context.Context) error { return nil }
func (f *container2Factory) Process(ctx context.Context) error {
	f.out = container2[product2]{Content: f.in}
	return nil
}
func (f *container2Factory) Write(ctx context.Context) error { return nil }
func (f *container2Factory) Get() any                        { return f.out }
func (f *container2Factory) Declare() factory.Declaration {
	return factory.Declaration{
		Output: factory.Output{Type: deliverable.TypeOf[container2[product2]]()},
		Inputs: []factory.Input{{Setter: f.SetProduct}},
	}
}

// needsProduct2 declares a required product2 input nobody produces in the
// unsatisfied-input scenarios.
type needsProduct2 struct {
	in         product2
	readCalled bool
}

func (f *needsProduct2) Read(ctx context.Context) error    { f.readCalled = true; return nil }
func (f *needsProduct2) Process(ctx context.Context) error { return nil }
func (f *needsProduct2) Write(ctx context.Context) error   { return nil }
func (f *needsProduct2) Get() any                          { return f.in }
func (f *needsProduct2) Declare() factory.Declaration {
	return factory.Declaration{
		Output: factory.Output{Type: deliverable.TypeOf[product2]()},
		Inputs: []factory.Input{{Target: &f.in}},
	}
}

// needsContainer2 declares a container2[product2] slot for the generic
// distinctness scenario.
type needsContainer2 struct {
	in container2[product2]
}

func (f *needsContainer2) Read(ctx context.Context) error    { return nil }
func (f *needsContainer2) Process(ctx context.Context) error { return nil }
func (f *needsContainer2) Write(ctx context.Context) error   { return nil }
func (f *needsContainer2) Get() any                          { return f.in }
func (f *needsContainer2) Declare() factory.Declaration {
	return factory.Declaration{
		Output: factory.Output{Type: deliverable.TypeOf[container2[product2]]()},
		Inputs: []factory.Input{{Target: &f.in}},
	}
}

// optionalInput keeps its default when the optional slot has no match.
type optionalInput struct {
	label string
}

func (f *optionalInput) Read(ctx context.Context) error    { return nil }
func (f *optionalInput) Process(ctx context.Context) error { return nil }
func (f *optionalInput) Write(ctx context.Context) error   { return nil }
func (f *optionalInput) Get() any                          { return f.label }
func (f *optionalInput) Declare() factory.Declaration {
	return factory.Declaration{
		Output: factory.Output{Type: deliverable.TypeOf[string]()},
		Inputs: []factory.Input{{Target: &f.label, DeliveryID: "missing", Optional: true}},
	}
}

var errBoom = errors.New("boom")

// failing fails during Process.
type failing struct{}

func (f *failing) Read(ctx context.Context) error    { return nil }
func (f *failing) Process(ctx context.Context) error { return errBoom }
func (f *failing) Write(ctx context.Context) error   { return nil }
func (f *failing) Get() any                          { return product1{} }
func (f *failing) Declare() factory.Declaration {
	return factory.Declaration{Output: factory.Output{Type: deliverable.TypeOf[product1]()}}
}

// blocking waits for cancellation during Read.
type blocking struct{}

func (f *blocking) Read(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
func (f *blocking) Process(ctx context.Context) error { return nil }
func (f *blocking) Write(ctx context.Context) error   { return nil }
func (f *blocking) Get() any                          { return product1{} }
func (f *blocking) Declare() factory.Declaration {
	return factory.Declaration{Output: factory.Output{Type: deliverable.TypeOf[product1]()}}
}

// autoLoaded consumes rows auto-loaded from a repository deliverable.
type autoLoaded struct {
	rows []product1
}

func (f *autoLoaded) Read(ctx context.Context) error    { return nil }
func (f *autoLoaded) Process(ctx context.Context) error { return nil }
func (f *autoLoaded) Write(ctx context.Context) error   { return nil }
func (f *autoLoaded) Get() any                          { return f.rows }
func (f *autoLoaded) Declare() factory.Declaration {
	return factory.Declaration{
		Output: factory.Output{Type: deliverable.TypeOf[[]product1]()},
		Inputs: []factory.Input{{Target: &f.rows, AutoLoad: true}},
	}
}
