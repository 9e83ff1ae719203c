package repository

import (
	"context"
)

// SaveMode selects how Save treats existing rows.
type SaveMode string

const (
	// SaveOverwrite replaces the stored rows.
	SaveOverwrite SaveMode = "overwrite"
	// SaveAppend appends to the stored rows.
	SaveAppend SaveMode = "append"
)

// Filter selects rows whose named field equals a value.
type Filter struct {
	Field  string
	Equals any
}

// Repository abstracts tabular storage of T rows. Factories consume
// repositories through auto-load slots: a slot of type []T is satisfied by
// any deliverable whose payload exposes FindAll(ctx) ([]T, error).
type Repository[T any] interface {
	FindAll(ctx context.Context) ([]T, error)
	FindBy(ctx context.Context, filters ...Filter) ([]T, error)
	Save(ctx context.Context, rows []T, mode SaveMode) error
}
