package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/facility-reservations/internal/persistence"
)

// AdminDirectory answers whether a caller token belongs to a facility administrator.
type AdminDirectory interface {
	IsAdmin(ctx context.Context, token string) (bool, error)
}

// StoreAdminDirectory looks tokens up in the admin collection by exact field match.
type StoreAdminDirectory struct {
	store  persistence.Store
	logger *slog.Logger
}

// NewStoreAdminDirectory constructs a store backed admin directory.
func NewStoreAdminDirectory(store persistence.Store, logger *slog.Logger) *StoreAdminDirectory {
	return &StoreAdminDirectory{store: store, logger: defaultLogger(logger)}
}

// IsAdmin reports whether token is listed in the admin collection. Empty tokens never match.
func (d *StoreAdminDirectory) IsAdmin(ctx context.Context, token string) (bool, error) {
	if d == nil || d.store == nil {
		return false, fmt.Errorf("admin directory not configured")
	}
	if token == "" {
		return false, nil
	}
	docs, err := d.store.QueryByField(ctx, persistence.CollectionAdmin, persistence.FieldToken, token)
	if err != nil {
		return false, storeError("query", persistence.CollectionAdmin, err)
	}
	return len(docs) > 0, nil
}

// AddToken registers a new administrator token and returns the document id.
func (d *StoreAdminDirectory) AddToken(ctx context.Context, token, name string) (id string, err error) {
	if d == nil || d.store == nil {
		err = fmt.Errorf("admin directory not configured")
		return
	}

	logger := serviceLogger(ctx, d.logger, "AdminDirectory", "AddToken")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add admin token", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "admin token added", "admin_id", id)
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(token) == "" {
		vErr.add("token", "token is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	existing, queryErr := d.store.QueryByField(ctx, persistence.CollectionAdmin, persistence.FieldToken, token)
	if queryErr != nil {
		err = storeError("query", persistence.CollectionAdmin, queryErr)
		return
	}
	if len(existing) > 0 {
		vErr.add("token", "token already registered")
		err = vErr
		return
	}

	id, insertErr := d.store.Insert(ctx, persistence.CollectionAdmin, persistence.AdminTokenFields(persistence.AdminToken{
		Token: token,
		Name:  strings.TrimSpace(name),
	}))
	if insertErr != nil {
		id = ""
		err = storeError("insert", persistence.CollectionAdmin, insertErr)
		return
	}
	return
}

var _ AdminDirectory = (*StoreAdminDirectory)(nil)
