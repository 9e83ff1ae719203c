package deliverable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type product struct{ X string }

type box[T any] struct{ Content T }

type otherProduct struct{ X string }

func TestTypeOf_DistinguishesGenericParameters(t *testing.T) {
	t.Parallel()

	a := TypeOf[box[product]]()
	b := TypeOf[box[otherProduct]]()

	require.False(t, a.Equal(b))
	require.True(t, a.Equal(TypeOf[box[product]]()))
	require.Contains(t, a.String(), "box")
}

func TestTypeOfValue_UsesDynamicType(t *testing.T) {
	t.Parallel()

	var v any = product{X: "x"}
	require.True(t, TypeOfValue(v).Equal(TypeOf[product]()))
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	d := New("payload")
	require.Equal(t, External, d.Producer())
	require.Empty(t, d.DeliveryID())
	require.Empty(t, d.Consumers())
	require.Equal(t, "payload", d.Get())
	require.True(t, d.Type().Equal(TypeOf[string]()))
	require.NotEqual(t, d.ID(), New("other").ID())
}

func TestMatches_TypeAndDeliveryID(t *testing.T) {
	t.Parallel()

	d := Of(product{X: "a"}).WithDeliveryID("left")

	require.True(t, d.Matches(Query{Type: TypeOf[product](), DeliveryID: "left", Producer: External}))
	require.False(t, d.Matches(Query{Type: TypeOf[product](), DeliveryID: "right", Producer: External}))
	require.False(t, d.Matches(Query{Type: TypeOf[otherProduct](), DeliveryID: "left", Producer: External}))
}

func TestMatches_ProducerSpecificity(t *testing.T) {
	t.Parallel()

	d := Of(product{}).WithProducer("pkg.maker")

	require.True(t, d.Matches(Query{Type: TypeOf[product](), Producer: External}))
	require.True(t, d.Matches(Query{Type: TypeOf[product](), Producer: "pkg.maker"}))
	require.False(t, d.Matches(Query{Type: TypeOf[product](), Producer: "pkg.other"}))
}

func TestMatches_ConsumerScoping(t *testing.T) {
	t.Parallel()

	open := Of(product{})
	scoped := Of(product{}).WithConsumers("pkg.a", "pkg.b")

	require.True(t, open.Matches(Query{Type: TypeOf[product](), Producer: External, Consumer: "pkg.c"}))
	require.True(t, scoped.Matches(Query{Type: TypeOf[product](), Producer: External, Consumer: "pkg.a"}))
	require.False(t, scoped.Matches(Query{Type: TypeOf[product](), Producer: External, Consumer: "pkg.c"}))

	require.True(t, scoped.Scoped(Query{Consumer: "pkg.b"}))
	require.False(t, open.Scoped(Query{Consumer: "pkg.b"}))
}

func TestSameSignature(t *testing.T) {
	t.Parallel()

	a := Of(product{X: "1"}).WithDeliveryID("id").WithConsumers("x", "y")
	b := Of(product{X: "2"}).WithDeliveryID("id").WithConsumers("y", "x")

	require.True(t, a.SameSignature(b))

	c := Of(product{}).WithDeliveryID("id").WithConsumers("x")
	require.False(t, a.SameSignature(c))
	require.False(t, a.SameSignature(Of(product{}).WithDeliveryID("other").WithConsumers("x", "y")))
	require.False(t, a.SameSignature(nil))
}

type fakeRepo struct{ rows []product }

func (r *fakeRepo) FindAll(ctx context.Context) ([]product, error) {
	return r.rows, nil
}

type notARepo struct{}

func (notARepo) FindAll(limit int) ([]product, error) { return nil, nil }

func TestMatchesAutoLoad(t *testing.T) {
	t.Parallel()

	repo := New(&fakeRepo{rows: []product{{X: "a"}}})
	q := Query{Type: TypeOf[[]product](), Producer: External, Consumer: "pkg.c"}

	require.True(t, repo.MatchesAutoLoad(q))
	require.False(t, repo.Matches(q))

	require.False(t, repo.MatchesAutoLoad(Query{Type: TypeOf[[]otherProduct](), Producer: External}))
	require.False(t, New(notARepo{}).MatchesAutoLoad(q))
	require.False(t, New("just a string").MatchesAutoLoad(q))
}

func TestMatchesAutoLoad_InterfaceToken(t *testing.T) {
	t.Parallel()

	type loader interface {
		FindAll(ctx context.Context) ([]product, error)
	}

	d := NewTyped(&fakeRepo{}, TypeOf[loader]())
	require.True(t, d.MatchesAutoLoad(Query{Type: TypeOf[[]product](), Producer: External}))
}
