package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/example/facility-reservations/internal/persistence"
)

// FacilityRegistry keeps the catalog of bookable facilities. Mutations are gated by the
// admin directory and written through to the store before the in-memory catalog changes.
type FacilityRegistry struct {
	store  persistence.Store
	admins AdminDirectory
	logger *slog.Logger

	mu         sync.RWMutex
	facilities map[string]Facility
}

// NewFacilityRegistry constructs a facility registry with the provided dependencies.
func NewFacilityRegistry(store persistence.Store, admins AdminDirectory) *FacilityRegistry {
	return NewFacilityRegistryWithLogger(store, admins, nil)
}

// NewFacilityRegistryWithLogger constructs a facility registry with a specified logger.
func NewFacilityRegistryWithLogger(store persistence.Store, admins AdminDirectory, logger *slog.Logger) *FacilityRegistry {
	return &FacilityRegistry{
		store:      store,
		admins:     admins,
		logger:     defaultLogger(logger),
		facilities: make(map[string]Facility),
	}
}

func (r *FacilityRegistry) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, r.logger, "FacilityRegistry", operation, attrs...)
}

// FacilityID derives the identifier of a facility from its name by removing all whitespace.
func FacilityID(name string) string {
	return strings.Join(strings.Fields(name), "")
}

// Add registers a new facility for an administrator.
func (r *FacilityRegistry) Add(ctx context.Context, name, callerToken string) (facility Facility, err error) {
	if r == nil {
		err = fmt.Errorf("FacilityRegistry is nil")
		return
	}

	logger := r.loggerWith(ctx, "Add")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add facility", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("facility_id", facility.ID).InfoContext(ctx, "facility added")
	}()

	if err = r.authorize(ctx, callerToken); err != nil {
		return
	}

	facility, err = r.add(ctx, name)
	return
}

// Seed registers the named facilities without authorization, skipping ids that already
// exist. It is meant for bootstrapping from configuration.
func (r *FacilityRegistry) Seed(ctx context.Context, names []string) (added int, err error) {
	if r == nil {
		return 0, fmt.Errorf("FacilityRegistry is nil")
	}

	logger := r.loggerWith(ctx, "Seed")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to seed facilities", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "facilities seeded", "result_count", added)
	}()

	for _, name := range names {
		if _, addErr := r.add(ctx, name); addErr != nil {
			var vErr *ValidationError
			if errors.As(addErr, &vErr) {
				continue
			}
			err = addErr
			return
		}
		added++
	}
	return
}

func (r *FacilityRegistry) add(ctx context.Context, name string) (Facility, error) {
	if r.store == nil {
		return Facility{}, fmt.Errorf("facility store not configured")
	}

	displayName := strings.TrimSpace(name)
	id := FacilityID(displayName)
	vErr := &ValidationError{}
	if id == "" {
		vErr.add("name", "name is required")
		return Facility{}, vErr
	}

	if r.Exists(id) {
		vErr.add("name", "a facility with this id already exists")
		return Facility{}, vErr
	}
	if _, getErr := r.store.GetByID(ctx, persistence.CollectionFacilities, id); getErr == nil {
		vErr.add("name", "a facility with this id already exists")
		return Facility{}, vErr
	} else if !errors.Is(getErr, persistence.ErrNotFound) {
		return Facility{}, storeError("get", persistence.CollectionFacilities, getErr)
	}

	facility := Facility{ID: id, DisplayName: displayName, ColorKey: ColorKey(displayName)}
	if setErr := r.store.SetByID(ctx, persistence.CollectionFacilities, id, persistence.FacilityFields(persistence.Facility{
		Name:     facility.DisplayName,
		ColorKey: facility.ColorKey,
	})); setErr != nil {
		return Facility{}, storeError("set", persistence.CollectionFacilities, setErr)
	}

	r.mu.Lock()
	r.facilities[id] = facility
	r.mu.Unlock()
	return facility, nil
}

// Rename changes the display name of a facility. The id never changes.
func (r *FacilityRegistry) Rename(ctx context.Context, id, newName, callerToken string) (facility Facility, err error) {
	if r == nil {
		err = fmt.Errorf("FacilityRegistry is nil")
		return
	}
	if r.store == nil {
		err = fmt.Errorf("facility store not configured")
		return
	}

	logger := r.loggerWith(ctx, "Rename", "facility_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to rename facility", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "facility renamed")
	}()

	if err = r.authorize(ctx, callerToken); err != nil {
		return
	}

	existing, getErr := r.Get(id)
	if getErr != nil {
		err = getErr
		return
	}

	displayName := strings.TrimSpace(newName)
	if displayName == "" {
		vErr := &ValidationError{}
		vErr.add("name", "name is required")
		err = vErr
		return
	}

	updated := existing
	updated.DisplayName = displayName
	updated.ColorKey = ColorKey(displayName)

	if updateErr := r.store.UpdateByID(ctx, persistence.CollectionFacilities, id, persistence.FacilityFields(persistence.Facility{
		Name:     updated.DisplayName,
		ColorKey: updated.ColorKey,
	})); updateErr != nil {
		err = mapFacilityStoreError("update", updateErr)
		return
	}

	r.mu.Lock()
	r.facilities[id] = updated
	r.mu.Unlock()

	facility = updated
	return
}

// Remove deletes a facility. Reservations that reference it are left untouched.
func (r *FacilityRegistry) Remove(ctx context.Context, id, callerToken string) error {
	if r == nil {
		return fmt.Errorf("FacilityRegistry is nil")
	}
	if r.store == nil {
		return fmt.Errorf("facility store not configured")
	}

	logger := r.loggerWith(ctx, "Remove", "facility_id", id)

	if err := r.authorize(ctx, callerToken); err != nil {
		logger.ErrorContext(ctx, "failed to remove facility", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	if !r.Exists(id) {
		logger.ErrorContext(ctx, "failed to remove facility", "error", ErrNotFound, "error_kind", ErrorKind(ErrNotFound))
		return ErrNotFound
	}

	if err := r.store.DeleteByID(ctx, persistence.CollectionFacilities, id); err != nil {
		err = mapFacilityStoreError("delete", err)
		logger.ErrorContext(ctx, "failed to remove facility", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	r.mu.Lock()
	delete(r.facilities, id)
	r.mu.Unlock()

	logger.InfoContext(ctx, "facility removed")
	return nil
}

// List returns every facility sorted case-insensitively by name, then id.
func (r *FacilityRegistry) List() []Facility {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	facilities := make([]Facility, 0, len(r.facilities))
	for _, f := range r.facilities {
		facilities = append(facilities, f)
	}
	r.mu.RUnlock()

	sort.Slice(facilities, func(i, j int) bool {
		if strings.EqualFold(facilities[i].DisplayName, facilities[j].DisplayName) {
			return facilities[i].ID < facilities[j].ID
		}
		return strings.ToLower(facilities[i].DisplayName) < strings.ToLower(facilities[j].DisplayName)
	})
	return facilities
}

// Get returns a single facility.
func (r *FacilityRegistry) Get(id string) (Facility, error) {
	if r == nil {
		return Facility{}, fmt.Errorf("FacilityRegistry is nil")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.facilities[id]
	if !ok {
		return Facility{}, ErrNotFound
	}
	return f, nil
}

// Exists reports whether a facility with the id is registered.
func (r *FacilityRegistry) Exists(id string) bool {
	_, err := r.Get(id)
	return err == nil
}

// FacilityExists implements FacilityCatalog.
func (r *FacilityRegistry) FacilityExists(ctx context.Context, id string) (bool, error) {
	return r.Exists(id), nil
}

// Reload replaces the catalog with the contents of the store.
func (r *FacilityRegistry) Reload(ctx context.Context) (err error) {
	if r == nil {
		return fmt.Errorf("FacilityRegistry is nil")
	}
	if r.store == nil {
		return fmt.Errorf("facility store not configured")
	}

	logger := r.loggerWith(ctx, "Reload")
	var loaded int
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to reload facilities", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "facilities reloaded", "result_count", loaded)
	}()

	docs, listErr := r.store.ListAll(ctx, persistence.CollectionFacilities)
	if listErr != nil {
		err = storeError("list", persistence.CollectionFacilities, listErr)
		return
	}

	next := make(map[string]Facility, len(docs))
	for _, doc := range docs {
		record := persistence.DecodeFacility(doc)
		if record.ID == "" {
			continue
		}
		name := strings.TrimSpace(record.Name)
		if name == "" {
			name = record.ID
		}
		colorKey := record.ColorKey
		if colorKey == "" {
			colorKey = ColorKey(name)
		}
		next[record.ID] = Facility{ID: record.ID, DisplayName: name, ColorKey: colorKey}
	}
	loaded = len(next)

	r.mu.Lock()
	r.facilities = next
	r.mu.Unlock()
	return nil
}

func (r *FacilityRegistry) authorize(ctx context.Context, token string) error {
	if r.admins == nil {
		return ErrUnauthorized
	}
	ok, err := r.admins.IsAdmin(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

func mapFacilityStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return storeError(op, persistence.CollectionFacilities, err)
}

var _ FacilityCatalog = (*FacilityRegistry)(nil)
