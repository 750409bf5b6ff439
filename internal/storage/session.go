package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/walletbridge/walletbridge/pkg/types"
)

// Storage keys. The session key is versioned so a schema change can be
// rolled out without misreading records written by older builds.
const (
	SessionKey       = "walletbridge/session/v2"
	ProviderStoreKey = "walletbridge/provider/store"
)

// SessionStore layers the bridge's two records on top of a Store: the
// custodial session written by the external login flow, and the provider
// account cache owned by the account registry.
//
// The session is read fresh on every use; its lifecycle belongs to the
// login collaborator. The provider record is mutated only through
// UpdateProviderStore, a whole-record read-merge-write.
type SessionStore struct {
	mu    sync.Mutex
	store Store
}

// NewSessionStore wraps a Store.
func NewSessionStore(store Store) *SessionStore {
	return &SessionStore{store: store}
}

// Session reads the active custodial session. ok is false when no session
// has been written yet.
func (s *SessionStore) Session(ctx context.Context) (*types.Session, bool, error) {
	raw, ok, err := s.store.Get(ctx, SessionKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var session types.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, false, fmt.Errorf("failed to decode session record: %w", err)
	}
	return &session, true, nil
}

// PutSession stores the session record. Called by session-restore logic,
// never by the bridge's request path.
func (s *SessionStore) PutSession(ctx context.Context, session *types.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}
	if err := s.store.Set(ctx, SessionKey, raw); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// ClearSession removes the stored session, e.g. on logout.
func (s *SessionStore) ClearSession(ctx context.Context) error {
	if err := s.store.Delete(ctx, SessionKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// ProviderStore reads the account cache. A missing record reads as the
// zero value.
func (s *SessionStore) ProviderStore(ctx context.Context) (types.ProviderStore, error) {
	raw, ok, err := s.store.Get(ctx, ProviderStoreKey)
	if err != nil {
		return types.ProviderStore{}, fmt.Errorf("failed to read provider store: %w", err)
	}
	if !ok {
		return types.ProviderStore{}, nil
	}

	var record types.ProviderStore
	if err := json.Unmarshal(raw, &record); err != nil {
		return types.ProviderStore{}, fmt.Errorf("failed to decode provider store: %w", err)
	}
	return record, nil
}

// ProviderStoreUpdate carries partial updates for UpdateProviderStore.
// Nil fields leave the current value untouched.
type ProviderStoreUpdate struct {
	Accounts       []string
	OrganizationID *string
}

// UpdateProviderStore merges the update into the current record and writes
// it back. It reports whether the stored value actually changed, so the
// caller can decide whether a change event should fire.
func (s *SessionStore) UpdateProviderStore(ctx context.Context, update ProviderStoreUpdate) (types.ProviderStore, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.ProviderStore(ctx)
	if err != nil {
		return types.ProviderStore{}, false, err
	}

	next := current
	if update.Accounts != nil {
		next.Accounts = update.Accounts
	}
	if update.OrganizationID != nil {
		next.OrganizationID = *update.OrganizationID
	}

	if next.Equal(current) {
		return current, false, nil
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return types.ProviderStore{}, false, fmt.Errorf("failed to encode provider store: %w", err)
	}
	if err := s.store.Set(ctx, ProviderStoreKey, raw); err != nil {
		return types.ProviderStore{}, false, fmt.Errorf("failed to write provider store: %w", err)
	}
	return next, true, nil
}

// ClearProviderStore removes the account cache, e.g. on disconnect.
func (s *SessionStore) ClearProviderStore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, ProviderStoreKey); err != nil {
		return fmt.Errorf("failed to clear provider store: %w", err)
	}
	return nil
}
