package repository

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// InMemory is a Repository backed by a slice. It is the storage used in
// tests and small pipelines; connector-backed implementations satisfy the
// same interface.
type InMemory[T any] struct {
	mu   sync.RWMutex
	rows []T
}

// NewInMemory creates a repository holding the given rows.
func NewInMemory[T any](rows ...T) *InMemory[T] {
	return &InMemory[T]{rows: append([]T(nil), rows...)}
}

// FindAll returns a copy of every stored row.
func (r *InMemory[T]) FindAll(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]T(nil), r.rows...), nil
}

// FindBy returns the rows matching every filter.
func (r *InMemory[T]) FindBy(ctx context.Context, filters ...Filter) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []T
	for _, row := range r.rows {
		ok, err := matchesAll(row, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// Save stores rows according to mode.
func (r *InMemory[T]) Save(ctx context.Context, rows []T, mode SaveMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch mode {
	case SaveOverwrite:
		r.rows = append([]T(nil), rows...)
	case SaveAppend:
		r.rows = append(r.rows, rows...)
	default:
		return fmt.Errorf("unknown save mode %q", mode)
	}
	return nil
}

func matchesAll[T any](row T, filters []Filter) (bool, error) {
	v := reflect.ValueOf(row)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	for _, f := range filters {
		if v.Kind() != reflect.Struct {
			return false, fmt.Errorf("filter on field %q requires struct rows, have %s", f.Field, v.Kind())
		}
		field := v.FieldByName(f.Field)
		if !field.IsValid() {
			return false, fmt.Errorf("unknown filter field %q", f.Field)
		}
		if !reflect.DeepEqual(field.Interface(), f.Equals) {
			return false, nil
		}
	}
	return true, nil
}
