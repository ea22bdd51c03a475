// Package session holds the authenticated identity for the lifetime of a
// client session and persists it in the local store between invocations.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/tOgg1/approvalctl/internal/db"
	"github.com/tOgg1/approvalctl/internal/logging"
	"github.com/tOgg1/approvalctl/internal/models"
)

// Namespace is the KV namespace holding the session keys.
const Namespace = "session"

const (
	keyUser   = "user"
	keyRole   = "role"
	keyUserID = "userId"
)

// ErrNoIdentity is returned when building a session without an identity.
var ErrNoIdentity = errors.New("identity is required")

// Session is an immutable snapshot of the signed-in identity. A nil
// *Session means "no session".
type Session struct {
	identity models.Identity
}

// New builds a session from a login response.
func New(identity *models.Identity) (*Session, error) {
	if identity == nil || identity.ID == 0 {
		return nil, ErrNoIdentity
	}
	return &Session{identity: *identity}, nil
}

func (s *Session) UserID() int64 { return s.identity.ID }

func (s *Session) Name() string { return s.identity.Name }

func (s *Session) Email() string { return s.identity.Email }

func (s *Session) Role() models.Role { return s.identity.Role }

func (s *Session) Status() models.UserStatus { return s.identity.Status }

// Active reports whether the session may pass gated routes.
func (s *Session) Active() bool {
	return s != nil && s.identity.IsActive()
}

// Identity returns a copy of the underlying identity.
func (s *Session) Identity() models.Identity {
	return s.identity
}

// KVStore is the persistence the session store needs.
type KVStore interface {
	SetMany(ctx context.Context, namespace string, values map[string]string) error
	List(ctx context.Context, namespace string) ([]*models.KV, error)
	DeleteNamespace(ctx context.Context, namespace string) (int64, error)
}

// Store persists the session under the Namespace keys user, role and userId.
type Store struct {
	kv     KVStore
	logger zerolog.Logger
}

func NewStore(kv KVStore) *Store {
	return &Store{kv: kv, logger: logging.Component("session")}
}

// NewDBStore is a convenience constructor over the local database.
func NewDBStore(database *db.DB) *Store {
	return NewStore(db.NewKVRepository(database))
}

// Save persists the session, replacing any previous one.
func (st *Store) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrNoIdentity
	}
	user, err := json.Marshal(s.identity)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	values := map[string]string{
		keyUser:   string(user),
		keyRole:   string(s.identity.Role),
		keyUserID: strconv.FormatInt(s.identity.ID, 10),
	}
	if err := st.kv.SetMany(ctx, Namespace, values); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load returns the persisted session, or nil when none is stored. A
// malformed or inconsistent payload is treated as no session.
func (st *Store) Load(ctx context.Context) (*Session, error) {
	entries, err := st.kv.List(ctx, Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	values := make(map[string]string, len(entries))
	for _, entry := range entries {
		values[entry.Key] = entry.Value
	}

	raw, ok := values[keyUser]
	if !ok {
		return nil, nil
	}
	var identity models.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		st.logger.Debug().Err(err).Msg("discarding malformed session")
		return nil, nil
	}
	if role, ok := values[keyRole]; ok && role != string(identity.Role) {
		st.logger.Debug().Str("role", role).Msg("discarding session with mismatched role")
		return nil, nil
	}
	if id, ok := values[keyUserID]; ok && id != strconv.FormatInt(identity.ID, 10) {
		st.logger.Debug().Str("user_id", id).Msg("discarding session with mismatched id")
		return nil, nil
	}

	s, err := New(&identity)
	if err != nil {
		return nil, nil
	}
	return s, nil
}

// Clear removes every session key.
func (st *Store) Clear(ctx context.Context) error {
	if _, err := st.kv.DeleteNamespace(ctx, Namespace); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
