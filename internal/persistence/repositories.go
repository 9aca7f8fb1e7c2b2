package persistence

import "context"

// Collection names used by the reservation core.
const (
	CollectionReservations = "reservations"
	CollectionFacilities   = "facilities"
	CollectionAdmin        = "admin"
)

// Document is a schemaless record addressed by collection and id.
type Document struct {
	ID     string
	Fields map[string]any
}

// Store is the narrow document collection contract the core reads and writes through.
// Implementations treat collections as independent namespaces and never cascade.
type Store interface {
	// ListAll returns every document of the collection.
	ListAll(ctx context.Context, collection string) ([]Document, error)
	// Insert stores fields under a store-assigned id and returns that id.
	Insert(ctx context.Context, collection string, fields map[string]any) (string, error)
	// SetByID creates or replaces the document with the given id.
	SetByID(ctx context.Context, collection, id string, fields map[string]any) error
	// UpdateByID merges fields into an existing document; ErrNotFound when absent.
	UpdateByID(ctx context.Context, collection, id string, fields map[string]any) error
	// DeleteByID removes a document; ErrNotFound when absent.
	DeleteByID(ctx context.Context, collection, id string) error
	// GetByID returns a single document; ErrNotFound when absent.
	GetByID(ctx context.Context, collection, id string) (Document, error)
	// QueryByField returns documents whose field equals value exactly.
	QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error)
}

// CloneFields returns a shallow copy of fields so callers cannot alias stored state.
func CloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
