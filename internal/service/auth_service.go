package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/modfusion/accounts/internal/domain"
	"github.com/modfusion/accounts/internal/metrics"
	"github.com/modfusion/accounts/internal/store"
)

// State is the session lifecycle state of the service.
type State int32

const (
	// StateInitializing is entered once at startup while the persisted
	// session reference is being resolved.
	StateInitializing State = iota

	// StateAnonymous means no account is signed in.
	StateAnonymous

	// StateAuthenticated means the session pointer resolves to an account.
	StateAuthenticated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Result is the outcome shape every UI-facing operation returns. Validation
// and conflict failures are carried in Error as a human-readable message.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ok() Result {
	return Result{Success: true}
}

func fail(msg string) Result {
	return Result{Success: false, Error: msg}
}

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Email           string
	FirstName       string
	LastName        string
	Password        string
	ConfirmPassword string
}

// ProfileUpdate carries a partial profile mutation. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
	Password  *string
	Avatar    *string
}

// AuthService is the only interface UI collaborators use. It adds input
// validation and derived session flags on top of the account store.
type AuthService struct {
	store   *store.Store
	metrics *metrics.Metrics
	logger  zerolog.Logger

	state    atomic.Int32
	inflight atomic.Int32
}

// NewAuthService creates an AuthService in the initializing state.
// Init must be called before any other operation.
func NewAuthService(st *store.Store, m *metrics.Metrics, logger zerolog.Logger) *AuthService {
	s := &AuthService{
		store:   st,
		metrics: m,
		logger:  logger.With().Str("service", "auth").Logger(),
	}
	s.state.Store(int32(StateInitializing))
	return s
}

// Init seeds the directory and resolves any persisted session reference.
// The service reports Loading until resolution completes.
func (s *AuthService) Init(ctx context.Context) error {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	if err := s.store.Init(ctx); err != nil {
		return err
	}

	if _, err := s.store.CurrentSession(ctx); err != nil {
		if !errors.Is(err, domain.ErrNoSession) {
			return err
		}
		s.state.Store(int32(StateAnonymous))
	} else {
		s.state.Store(int32(StateAuthenticated))
	}

	s.metrics.SetDirectorySize(s.store.Count(ctx))

	s.logger.Info().Stringer("state", s.State()).Msg("session resolved")
	return nil
}

// State returns the current session lifecycle state.
func (s *AuthService) State() State {
	return State(s.state.Load())
}

// Loading reports whether the initial session resolution or an in-flight
// login/register call is running.
func (s *AuthService) Loading() bool {
	return s.inflight.Load() > 0
}

// Login validates the credentials and delegates to the store. A store miss
// surfaces as a generic invalid-credentials failure; it never reveals which
// field was wrong.
func (s *AuthService) Login(ctx context.Context, email, password string) Result {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	if strings.TrimSpace(email) == "" || password == "" {
		return fail(msgMissingCredentials)
	}
	if !domain.ValidEmail(email) {
		return fail(msgInvalidEmail)
	}

	account, err := s.store.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.metrics.RecordLogin(metrics.OutcomeFailure)
			return fail(msgInvalidCredentials)
		}
		s.logger.Error().Err(err).Msg("login failed on store fault")
		return fail(msgInternal)
	}

	s.state.Store(int32(StateAuthenticated))
	s.metrics.RecordLogin(metrics.OutcomeSuccess)

	s.logger.Info().Str("account_id", account.ID).Msg("login succeeded")
	return ok()
}

// Register validates the registration form, creates the account, and signs
// it in (auto-login after registration).
func (s *AuthService) Register(ctx context.Context, input RegisterInput) Result {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	if strings.TrimSpace(input.Email) == "" ||
		strings.TrimSpace(input.FirstName) == "" ||
		strings.TrimSpace(input.LastName) == "" ||
		input.Password == "" || input.ConfirmPassword == "" {
		return fail(msgMissingFields)
	}
	if !domain.ValidEmail(input.Email) {
		return fail(msgInvalidEmail)
	}
	if !domain.ValidPassword(input.Password) {
		return fail(msgPasswordTooShort)
	}
	if input.Password != input.ConfirmPassword {
		return fail(msgPasswordMismatch)
	}
	if !domain.ValidName(input.FirstName) || !domain.ValidName(input.LastName) {
		return fail(msgInvalidName)
	}

	account, err := s.store.Create(ctx,
		input.Email,
		strings.TrimSpace(input.FirstName),
		strings.TrimSpace(input.LastName),
		input.Password,
	)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return fail(msgEmailTaken)
		}
		s.logger.Error().Err(err).Msg("registration failed on store fault")
		return fail(msgInternal)
	}

	if err := s.store.SetSession(ctx, account.ID); err != nil {
		s.logger.Error().Err(err).Str("account_id", account.ID).Msg("auto-login after registration failed")
		return fail(msgInternal)
	}

	s.state.Store(int32(StateAuthenticated))
	s.metrics.RecordRegistration()
	s.metrics.SetDirectorySize(s.store.Count(ctx))

	s.logger.Info().Str("account_id", account.ID).Msg("account registered")
	return ok()
}

// Logout clears the session pointer. It is idempotent: logging out with no
// active session is not an error.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.store.ClearSession(ctx); err != nil {
		s.logger.Error().Err(err).Msg("logout failed to clear session record")
		return err
	}
	s.state.Store(int32(StateAnonymous))
	return nil
}

// CurrentSession resolves the live session account. A session that the store
// self-healed away flips the service to the anonymous state.
func (s *AuthService) CurrentSession(ctx context.Context) (*domain.Account, error) {
	account, err := s.store.CurrentSession(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoSession) && s.State() == StateAuthenticated {
			s.state.Store(int32(StateAnonymous))
		}
		return nil, err
	}
	return account, nil
}

// IsAuthenticated reports whether a session is active.
func (s *AuthService) IsAuthenticated(ctx context.Context) bool {
	_, err := s.CurrentSession(ctx)
	return err == nil
}

// IsAdmin reports whether a session is active and holds the admin role.
func (s *AuthService) IsAdmin(ctx context.Context) bool {
	account, err := s.CurrentSession(ctx)
	return err == nil && account.IsAdmin()
}

// UpdateProfile merges the non-nil fields into the current session account.
// It fails immediately when no session is active, and re-validates any
// email/name/password fields present with the registration rules.
func (s *AuthService) UpdateProfile(ctx context.Context, upd ProfileUpdate) Result {
	account, err := s.CurrentSession(ctx)
	if err != nil {
		return fail(msgNoSession)
	}

	if upd.Email != nil && !domain.ValidEmail(*upd.Email) {
		return fail(msgInvalidEmail)
	}
	if upd.FirstName != nil && !domain.ValidName(*upd.FirstName) {
		return fail(msgInvalidName)
	}
	if upd.LastName != nil && !domain.ValidName(*upd.LastName) {
		return fail(msgInvalidName)
	}
	if upd.Password != nil && !domain.ValidPassword(*upd.Password) {
		return fail(msgPasswordTooShort)
	}

	if _, err := s.store.Update(ctx, account.ID, store.Update{
		Email:     upd.Email,
		FirstName: trimmed(upd.FirstName),
		LastName:  trimmed(upd.LastName),
		Password:  upd.Password,
		Avatar:    upd.Avatar,
	}); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return fail(msgEmailTaken)
		}
		if errors.Is(err, domain.ErrProtectedAccount) {
			return fail(msgProtectedEmail)
		}
		if errors.Is(err, domain.ErrAccountNotFound) {
			return fail(msgNoSession)
		}
		s.logger.Error().Err(err).Str("account_id", account.ID).Msg("profile update failed on store fault")
		return fail(msgInternal)
	}

	return ok()
}

// ListAccounts returns the full directory. Admin only.
func (s *AuthService) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	if !s.IsAdmin(ctx) {
		return nil, ErrForbidden
	}
	return s.store.List(ctx)
}

// PromoteAccount raises an account to the admin role. Admin only.
func (s *AuthService) PromoteAccount(ctx context.Context, id string) Result {
	if !s.IsAdmin(ctx) {
		return fail(ErrForbidden.Error())
	}

	changed, err := s.store.Promote(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", id).Msg("promote failed on store fault")
		return fail(msgInternal)
	}
	if !changed {
		return fail(msgAccountNotFound)
	}
	return ok()
}

// DemoteAccount lowers an account to the user role. Admin only. Demoting
// the protected admin is a definite, visible failure.
func (s *AuthService) DemoteAccount(ctx context.Context, id string) Result {
	if !s.IsAdmin(ctx) {
		return fail(ErrForbidden.Error())
	}

	if s.store.IsProtectedAdmin(id) {
		s.metrics.RecordProtectionViolation()
		return fail(msgProtectedDemote)
	}

	changed, err := s.store.Demote(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", id).Msg("demote failed on store fault")
		return fail(msgInternal)
	}
	if !changed {
		return fail(msgAccountNotFound)
	}
	return ok()
}

// DeleteAccount removes an account from the directory. Admin only. Deleting
// the protected admin is a definite, visible failure.
func (s *AuthService) DeleteAccount(ctx context.Context, id string) Result {
	if !s.IsAdmin(ctx) {
		return fail(ErrForbidden.Error())
	}

	if s.store.IsProtectedAdmin(id) {
		s.metrics.RecordProtectionViolation()
		return fail(msgProtectedDelete)
	}

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", id).Msg("delete failed on store fault")
		return fail(msgInternal)
	}
	if !deleted {
		return fail(msgAccountNotFound)
	}

	s.metrics.SetDirectorySize(s.store.Count(ctx))
	return ok()
}

// ResetDirectory clears the directory and re-seeds the protected admin.
// Admin only; this is an administrative operation, not a user path.
func (s *AuthService) ResetDirectory(ctx context.Context) Result {
	if !s.IsAdmin(ctx) {
		return fail(ErrForbidden.Error())
	}

	if err := s.store.Reset(ctx); err != nil {
		s.logger.Error().Err(err).Msg("directory reset failed")
		return fail(msgInternal)
	}

	s.state.Store(int32(StateAnonymous))
	s.metrics.SetDirectorySize(s.store.Count(ctx))
	return ok()
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	t := strings.TrimSpace(*p)
	return &t
}
