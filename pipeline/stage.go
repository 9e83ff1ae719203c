package pipeline

import (
	"github.com/JorisTruong/setl/factory"
	setlerrors "github.com/JorisTruong/setl/pkg/errors"
)

// Stage is an ordered group of factories with no dependencies among them.
// The last registered stage carries the end marker; adding a later stage
// clears it on the previous one.
type Stage struct {
	id          int
	end         bool
	parallel    bool
	factories   []factory.Factory
	descriptors []*factory.Descriptor
}

// NewStage creates an empty stage.
func NewStage() *Stage {
	return &Stage{}
}

// NewStageOf creates a stage holding the given factories, in order.
func NewStageOf(factories ...factory.Factory) (*Stage, error) {
	s := NewStage()
	for _, f := range factories {
		if err := s.AddFactory(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddFactory appends a factory, building its descriptor immediately so a
// malformed declaration fails at registration.
func (s *Stage) AddFactory(f factory.Factory) error {
	if f == nil {
		return setlerrors.NewConstructorError("", "factory cannot be nil", nil)
	}
	desc, err := factory.Describe(f)
	if err != nil {
		return err
	}
	s.factories = append(s.factories, f)
	s.descriptors = append(s.descriptors, desc)
	return nil
}

// WithParallel marks the stage's factories as runnable concurrently.
func (s *Stage) WithParallel(parallel bool) *Stage {
	s.parallel = parallel
	return s
}

// ID returns the stage's 0-based position in the pipeline.
func (s *Stage) ID() int { return s.id }

// End reports whether this is the last registered stage.
func (s *Stage) End() bool { return s.end }

// Parallel reports whether factories may run concurrently.
func (s *Stage) Parallel() bool { return s.parallel }

// Factories returns the stage's factories in registration order.
func (s *Stage) Factories() []factory.Factory {
	return append([]factory.Factory(nil), s.factories...)
}

// Descriptors returns the reflected descriptors, parallel to Factories.
func (s *Stage) Descriptors() []*factory.Descriptor {
	return append([]*factory.Descriptor(nil), s.descriptors...)
}

// newStageFrom rebuilds a stage around already-described factories. The
// optimizer uses it so descriptors keep their identity across rewrites.
func newStageFrom(factories []factory.Factory, descriptors []*factory.Descriptor, parallel bool) *Stage {
	return &Stage{
		parallel:    parallel,
		factories:   append([]factory.Factory(nil), factories...),
		descriptors: append([]*factory.Descriptor(nil), descriptors...),
	}
}
