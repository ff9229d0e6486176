package models

import "time"

var _ Model = (*PublishRun)(nil)

// Model is a row of the local database.
type Model interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Repository stores one kind of [Model].
//
// List criteria are column name → value pairs plus the optional "limit" key; each implementation documents
// the columns it accepts.
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Update(model T) error
	Delete(id string) error // soft delete; deleted rows are hidden from Get and List
	List(criteria map[string]any) ([]T, error)
}
