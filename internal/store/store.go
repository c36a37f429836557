// Package store owns the durable account directory and the session pointer.
// All directory invariants (email uniqueness, the protected admin, session
// consistency) are enforced at this layer so no caller can bypass them.
//
// The directory and the session pointer are persisted as two named records in
// a kv.Store. Every mutating operation completes its persistence write before
// returning, so reads always observe the latest persisted state.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/modfusion/accounts/internal/domain"
	"github.com/modfusion/accounts/internal/kv"
)

const (
	// DirectoryKey is the record holding the JSON array of accounts.
	DirectoryKey = "modfusion_users"

	// SessionKey is the record holding the serialized current account.
	// The session is always re-resolved against the directory by id; the
	// serialized copy exists only for layout compatibility.
	SessionKey = "modfusion_current_user"
)

// Seed is the fixed identity of the protected admin account. It is
// synthesized at startup whenever the directory does not contain it.
type Seed struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// DefaultSeed returns the well-known protected admin identity.
func DefaultSeed() Seed {
	return Seed{
		Email:     "admin@modfusion.com",
		Password:  "admin123",
		FirstName: "Admin",
		LastName:  "ModFusion",
	}
}

// Update carries a partial account mutation. Nil fields are left unchanged.
type Update struct {
	Email     *string
	FirstName *string
	LastName  *string
	Password  *string
	Avatar    *string
}

// Store is the sole owner of the account directory and the session pointer.
type Store struct {
	mu          sync.Mutex
	kvs         kv.Store
	seed        Seed
	protectedID string
	logger      zerolog.Logger
}

// New creates a Store over the given record store. Init must be called
// before any other operation.
func New(kvs kv.Store, seed Seed, logger zerolog.Logger) *Store {
	return &Store{
		kvs:    kvs,
		seed:   seed,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// Init loads the persisted directory and guarantees the protected admin
// exists before any operation is served. A missing or corrupt directory
// degrades to an empty one and is re-seeded.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := s.loadDirectory(ctx)

	seedEmail := domain.NormalizeEmail(s.seed.Email)
	for _, a := range accounts {
		if a.Email == seedEmail {
			s.protectedID = a.ID
			if a.Role != domain.RoleAdmin {
				// Heal a corrupt persisted state: the protected admin
				// must always hold the admin role.
				a.Role = domain.RoleAdmin
				if err := s.saveDirectory(ctx, accounts); err != nil {
					return err
				}
				s.logger.Warn().Str("account_id", a.ID).Msg("restored admin role on protected account")
			}
			return nil
		}
	}

	admin := domain.NewAccount(seedEmail, s.seed.FirstName, s.seed.LastName, s.seed.Password)
	admin.Role = domain.RoleAdmin
	accounts = append(accounts, admin)

	if err := s.saveDirectory(ctx, accounts); err != nil {
		return err
	}
	s.protectedID = admin.ID

	s.logger.Info().
		Str("account_id", admin.ID).
		Str("email", admin.Email).
		Msg("seeded protected admin account")

	return nil
}

// List returns a snapshot of all accounts.
func (s *Store) List(ctx context.Context) ([]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := s.loadDirectory(ctx)
	out := make([]*domain.Account, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Clone())
	}
	return out, nil
}

// Count returns the number of accounts in the directory.
func (s *Store) Count(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loadDirectory(ctx))
}

// Create adds a new account with the user role. The email is normalized
// before the uniqueness check. Create never touches the session pointer;
// auto-login after registration is a service-layer decision.
func (s *Store) Create(ctx context.Context, email, firstName, lastName, password string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = domain.NormalizeEmail(email)
	accounts := s.loadDirectory(ctx)

	if findByEmail(accounts, email) != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmailTaken, email)
	}

	account := domain.NewAccount(email, firstName, lastName, password)
	accounts = append(accounts, account)

	if err := s.saveDirectory(ctx, accounts); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("account_id", account.ID).
		Str("email", account.Email).
		Msg("account created")

	return account.Clone(), nil
}

// Authenticate matches the normalized email and the exact password. On a
// match it refreshes lastLogin, persists, and makes the account the current
// session. A miss returns domain.ErrInvalidCredentials; it is an expected
// outcome, not a fault.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = domain.NormalizeEmail(email)
	accounts := s.loadDirectory(ctx)

	account := findByEmail(accounts, email)
	if account == nil || account.Password != password {
		s.logger.Debug().Str("email", email).Msg("authentication failed")
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	account.LastLogin = &now

	if err := s.saveDirectory(ctx, accounts); err != nil {
		return nil, err
	}
	if err := s.saveSession(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("account_id", account.ID).
		Str("email", account.Email).
		Msg("account authenticated")

	return account.Clone(), nil
}

// CurrentSession resolves the session pointer against the live directory.
// If the referenced account no longer exists the pointer is cleared and
// domain.ErrNoSession is returned: the store self-heals rather than hand
// back stale data.
func (s *Store) CurrentSession(ctx context.Context) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveSession(ctx)
}

// SetSession makes the account with the given id the current session.
func (s *Store) SetSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account := findByID(s.loadDirectory(ctx), id)
	if account == nil {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	return s.saveSession(ctx, account)
}

// ClearSession drops the session pointer. The referenced account is left
// untouched. Clearing an absent session is not an error.
func (s *Store) ClearSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kvs.Delete(ctx, SessionKey)
}

// Update merges the non-nil fields into the account with the given id.
// An email change that collides with a different account fails with
// domain.ErrEmailTaken and writes nothing; changing the protected admin's
// email fails with domain.ErrProtectedAccount, since the email is what
// identifies that account across restarts. If the updated account is the
// current session the session record is refreshed.
func (s *Store) Update(ctx context.Context, id string, upd Update) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := s.loadDirectory(ctx)
	account := findByID(accounts, id)
	if account == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}

	if upd.Email != nil {
		email := domain.NormalizeEmail(*upd.Email)
		if account.ID == s.protectedID && email != account.Email {
			// The protected admin is re-identified by its email at startup;
			// changing it would strip the protection after a restart.
			return nil, fmt.Errorf("%w: email is fixed", domain.ErrProtectedAccount)
		}
		if other := findByEmail(accounts, email); other != nil && other.ID != id {
			return nil, fmt.Errorf("%w: %s", domain.ErrEmailTaken, email)
		}
		account.Email = email
	}
	if upd.FirstName != nil {
		account.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		account.LastName = *upd.LastName
	}
	if upd.Password != nil {
		account.Password = *upd.Password
	}
	if upd.Avatar != nil {
		account.Avatar = *upd.Avatar
	}

	if err := s.saveDirectory(ctx, accounts); err != nil {
		return nil, err
	}
	if err := s.refreshSessionIfCurrent(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info().Str("account_id", account.ID).Msg("account updated")
	return account.Clone(), nil
}

// Delete removes the account with the given id. It returns false without
// effect for the protected admin and for unknown ids. Deleting the account
// behind the current session clears the session pointer.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == s.protectedID {
		s.logger.Warn().Str("account_id", id).Msg("refused to delete protected admin")
		return false, nil
	}

	accounts := s.loadDirectory(ctx)
	idx := -1
	for i, a := range accounts {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	accounts = append(accounts[:idx], accounts[idx+1:]...)
	if err := s.saveDirectory(ctx, accounts); err != nil {
		return false, err
	}

	if sessionID, _ := s.sessionAccountID(ctx); sessionID == id {
		if err := s.kvs.Delete(ctx, SessionKey); err != nil {
			return false, err
		}
	}

	s.logger.Info().Str("account_id", id).Msg("account deleted")
	return true, nil
}

// Promote raises the account to the admin role. Promoting an account that
// is already an admin is a no-op success.
func (s *Store) Promote(ctx context.Context, id string) (bool, error) {
	return s.setRole(ctx, id, domain.RoleAdmin)
}

// Demote lowers the account to the user role. It returns false without
// effect for the protected admin.
func (s *Store) Demote(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	protected := id == s.protectedID
	s.mu.Unlock()

	if protected {
		s.logger.Warn().Str("account_id", id).Msg("refused to demote protected admin")
		return false, nil
	}
	return s.setRole(ctx, id, domain.RoleUser)
}

// IsProtectedAdmin reports whether id identifies the protected admin
// account. Pure predicate, no side effects.
func (s *Store) IsProtectedAdmin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id != "" && id == s.protectedID
}

// Reset clears the directory and the session pointer, then re-seeds the
// protected admin. The directory is never left without it.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	if err := s.kvs.Delete(ctx, DirectoryKey); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.kvs.Delete(ctx, SessionKey); err != nil {
		s.mu.Unlock()
		return err
	}
	s.protectedID = ""
	s.mu.Unlock()

	s.logger.Info().Msg("directory reset")
	return s.Init(ctx)
}

func (s *Store) setRole(ctx context.Context, id string, role domain.Role) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := s.loadDirectory(ctx)
	account := findByID(accounts, id)
	if account == nil {
		return false, nil
	}
	if account.Role == role {
		return true, nil
	}

	account.Role = role
	if err := s.saveDirectory(ctx, accounts); err != nil {
		return false, err
	}
	if err := s.refreshSessionIfCurrent(ctx, account); err != nil {
		return false, err
	}

	s.logger.Info().
		Str("account_id", account.ID).
		Str("role", string(role)).
		Msg("account role changed")

	return true, nil
}

// loadDirectory reads the directory record. A missing record is an empty
// directory; a corrupt or unreadable record is logged and degrades to an
// empty directory rather than failing the caller.
func (s *Store) loadDirectory(ctx context.Context) []*domain.Account {
	raw, err := s.kvs.Get(ctx, DirectoryKey)
	if err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			s.logger.Error().Err(err).Msg("failed to read directory record, treating as empty")
		}
		return nil
	}

	var accounts []*domain.Account
	if err := json.Unmarshal(raw, &accounts); err != nil {
		s.logger.Error().Err(err).Msg("corrupt directory record, treating as empty")
		return nil
	}
	return accounts
}

func (s *Store) saveDirectory(ctx context.Context, accounts []*domain.Account) error {
	raw, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to encode directory: %w", err)
	}
	if err := s.kvs.Put(ctx, DirectoryKey, raw); err != nil {
		return fmt.Errorf("failed to persist directory: %w", err)
	}
	return nil
}

func (s *Store) saveSession(ctx context.Context, account *domain.Account) error {
	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.kvs.Put(ctx, SessionKey, raw); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// sessionAccountID reads the id out of the session record without resolving
// it. A missing or corrupt record yields the empty id.
func (s *Store) sessionAccountID(ctx context.Context) (string, error) {
	raw, err := s.kvs.Get(ctx, SessionKey)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return "", nil
		}
		return "", err
	}

	var snapshot domain.Account
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		s.logger.Error().Err(err).Msg("corrupt session record, clearing")
		return "", s.kvs.Delete(ctx, SessionKey)
	}
	return snapshot.ID, nil
}

// resolveSession re-reads the directory by id so the session always
// reflects the live account, never the serialized snapshot. Callers must
// hold the mutex.
func (s *Store) resolveSession(ctx context.Context) (*domain.Account, error) {
	id, err := s.sessionAccountID(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read session record")
		return nil, domain.ErrNoSession
	}
	if id == "" {
		return nil, domain.ErrNoSession
	}

	account := findByID(s.loadDirectory(ctx), id)
	if account == nil {
		// The referenced account is gone; self-heal the pointer.
		if err := s.kvs.Delete(ctx, SessionKey); err != nil {
			return nil, err
		}
		s.logger.Info().Str("account_id", id).Msg("cleared stale session pointer")
		return nil, domain.ErrNoSession
	}
	return account.Clone(), nil
}

// refreshSessionIfCurrent rewrites the session record when the mutated
// account is the one it references. Callers must hold the mutex.
func (s *Store) refreshSessionIfCurrent(ctx context.Context, account *domain.Account) error {
	id, err := s.sessionAccountID(ctx)
	if err != nil {
		return err
	}
	if id != account.ID {
		return nil
	}
	return s.saveSession(ctx, account)
}

func findByID(accounts []*domain.Account, id string) *domain.Account {
	for _, a := range accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func findByEmail(accounts []*domain.Account, normalized string) *domain.Account {
	for _, a := range accounts {
		if a.Email == normalized {
			return a
		}
	}
	return nil
}
