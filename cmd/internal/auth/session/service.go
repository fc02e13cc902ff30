package session

import (
	"context"
	"log/slog"
	"time"

	"authority/cmd/identity"
	"authority/cmd/identity/ids"
	"authority/cmd/internal/apperr"
	"authority/cmd/security/password"
	"authority/cmd/security/token"
)

// Hasher fingerprints secrets. password.Config satisfies it.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) error
}

// Service implements the session lifecycle over an identity.Store.
type Service struct {
	store    identity.Store
	hasher   Hasher
	codec    *token.Codec
	policies identity.Policies

	events Publisher
	log    *slog.Logger
	now    func() time.Time

	// dummyHash is verified for unknown names so both login failures cost the same.
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event publisher (default: drop events).
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service from cfg and store.
func NewService(cfg Config, store identity.Store, opts ...Option) (*Service, error) {
	codec, err := token.NewCodec(cfg.Token)
	if err != nil {
		return nil, err
	}
	if cfg.Password.Params == (password.Argon2idParams{}) {
		cfg.Password = password.DefaultConfig()
	}
	if cfg.Policies.Name.Field == "" {
		cfg.Policies = identity.DefaultPolicies()
	}

	s := &Service{
		store:    store,
		hasher:   cfg.Password,
		codec:    codec,
		policies: cfg.Policies,
		events:   nopPublisher{},
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.dummyHash, err = s.hasher.Hash("timing-parity-placeholder")
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create validates and persists a new account, then logs it in.
func (s *Service) Create(ctx context.Context, name, secret string) (_ Pair, err error) {
	started := time.Now()
	defer func() { record(OpCreate, started, err) }()

	if fields := s.policies.Validate(name, secret); fields != nil {
		return Pair{}, apperr.Validation(fields)
	}

	switch _, err := s.store.FindByName(ctx, name); {
	case err == nil:
		return Pair{}, nameTaken()
	case !identity.IsNotFound(err):
		return Pair{}, apperr.Internal(err)
	}

	now := s.now()
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return Pair{}, apperr.Internal(err)
	}
	id, err := ids.New(now)
	if err != nil {
		return Pair{}, apperr.Internal(err)
	}

	c := identity.Credential{ID: id, Name: name, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	if err := s.store.Create(ctx, c); err != nil {
		if identity.ConflictField(err) == identity.FieldName {
			return Pair{}, nameTaken()
		}
		return Pair{}, apperr.Internal(err)
	}

	pair, refreshHash, err := s.issuePair(c, now)
	if err != nil {
		s.discard(ctx, c.ID)
		return Pair{}, err
	}
	if err := s.store.SwapRefreshHash(ctx, c.ID, nil, &refreshHash, now); err != nil {
		s.discard(ctx, c.ID)
		return Pair{}, apperr.Internal(err)
	}

	s.log.Info("auth.create.ok", "user_id", c.ID)
	s.publish(ctx, EventIssued, c.ID, now)
	return pair, nil
}

// discard removes an account whose first session could not be stored, so the
// name can be registered again.
func (s *Service) discard(ctx context.Context, id string) {
	if err := s.store.DeleteByID(context.WithoutCancel(ctx), id); err != nil && !identity.IsNotFound(err) {
		s.log.Error("auth.create.rollback.fail", "user_id", id, "err", err)
	}
}

// Login checks name and secret and replaces any existing session.
func (s *Service) Login(ctx context.Context, name, secret string) (_ Pair, err error) {
	started := time.Now()
	defer func() { record(OpLogin, started, err) }()

	c, err := s.store.FindByName(ctx, name)
	if err != nil {
		if !identity.IsNotFound(err) {
			return Pair{}, apperr.Internal(err)
		}
		_ = s.hasher.Verify(secret, s.dummyHash)
		s.log.Warn("auth.login.fail", "reason", "unknown_name")
		return Pair{}, credentialsDiffer()
	}
	if err := s.hasher.Verify(secret, c.PasswordHash); err != nil {
		s.log.Warn("auth.login.fail", "reason", "mismatch", "user_id", c.ID)
		return Pair{}, credentialsDiffer()
	}

	now := s.now()
	pair, refreshHash, err := s.issuePair(c, now)
	if err != nil {
		return Pair{}, err
	}
	if err := s.store.Upsert(ctx, c.WithSession(refreshHash, now)); err != nil {
		return Pair{}, apperr.Internal(err)
	}

	s.log.Info("auth.login.ok", "user_id", c.ID)
	s.publish(ctx, EventIssued, c.ID, now)
	return pair, nil
}

// Refresh exchanges the current refresh token for a new pair and invalidates it.
func (s *Service) Refresh(ctx context.Context, rc RefreshCredential) (_ Pair, err error) {
	started := time.Now()
	defer func() { record(OpRefresh, started, err) }()

	now := s.now()
	claims, err := s.codec.Verify(token.Refresh, rc.Raw, now)
	if err != nil || claims.Subject != rc.Claims.Subject {
		return Pair{}, invalidToken(err)
	}

	c, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		return Pair{}, orphaned(err)
	}
	if !c.HasActiveSession() {
		s.log.Warn("session.refresh.inactive", "user_id", c.ID)
		return Pair{}, refreshDiffers()
	}
	if err := s.hasher.Verify(rc.Raw, *c.RefreshTokenHash); err != nil {
		s.log.Warn("session.refresh.mismatch", "user_id", c.ID)
		return Pair{}, refreshDiffers()
	}

	pair, refreshHash, err := s.issuePair(c, now)
	if err != nil {
		return Pair{}, err
	}
	if err := s.store.SwapRefreshHash(ctx, c.ID, c.RefreshTokenHash, &refreshHash, now); err != nil {
		if identity.IsNotActive(err) {
			s.log.Warn("session.refresh.stale", "user_id", c.ID)
			return Pair{}, refreshDiffers()
		}
		return Pair{}, apperr.Internal(err)
	}

	s.log.Info("session.refresh.ok", "user_id", c.ID)
	s.publish(ctx, EventRotated, c.ID, now)
	return pair, nil
}

// Logout clears the stored refresh fingerprint.
func (s *Service) Logout(ctx context.Context, who Identity) (err error) {
	started := time.Now()
	defer func() { record(OpLogout, started, err) }()

	c, err := s.store.FindByID(ctx, who.UserID)
	if err != nil {
		return orphaned(err)
	}
	now := s.now()
	if err := s.store.Upsert(ctx, c.WithoutSession(now)); err != nil {
		return apperr.Internal(err)
	}

	s.log.Info("auth.logout.ok", "user_id", c.ID)
	s.publish(ctx, EventRevoked, c.ID, now)
	return nil
}

// DeleteAccount removes the caller's account.
func (s *Service) DeleteAccount(ctx context.Context, who Identity) (err error) {
	started := time.Now()
	defer func() { record(OpDelete, started, err) }()

	if err := s.store.DeleteByID(ctx, who.UserID); err != nil {
		return orphaned(err)
	}

	s.log.Info("auth.delete.ok", "user_id", who.UserID)
	s.publish(ctx, EventAccountDeleted, who.UserID, s.now())
	return nil
}

// Account is the public view of a credential.
type Account struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// WhoAmI loads the caller's account.
func (s *Service) WhoAmI(ctx context.Context, who Identity) (_ Account, err error) {
	started := time.Now()
	defer func() { record(OpWhoAmI, started, err) }()

	c, err := s.store.FindByID(ctx, who.UserID)
	if err != nil {
		return Account{}, apperr.From(err)
	}
	return Account{UserID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}, nil
}

// VerifyAccess resolves a raw access token into the caller's Identity.
func (s *Service) VerifyAccess(raw string) (Identity, error) {
	claims, err := s.codec.Verify(token.Access, raw, s.now())
	if err != nil {
		return Identity{}, invalidToken(err)
	}
	return Identity{UserID: claims.Subject, Name: claims.Name}, nil
}

// VerifyRefresh checks a raw refresh token's signature and class.
// It does not consult the store; Refresh does.
func (s *Service) VerifyRefresh(raw string) (RefreshCredential, error) {
	claims, err := s.codec.Verify(token.Refresh, raw, s.now())
	if err != nil {
		return RefreshCredential{}, invalidToken(err)
	}
	return RefreshCredential{Claims: claims, Raw: raw}, nil
}

func (s *Service) issuePair(c identity.Credential, now time.Time) (Pair, string, error) {
	sub := token.Subject{ID: c.ID, Name: c.Name}
	access, err := s.codec.Issue(token.Access, sub, now)
	if err != nil {
		return Pair{}, "", apperr.Internal(err)
	}
	refresh, err := s.codec.Issue(token.Refresh, sub, now)
	if err != nil {
		return Pair{}, "", apperr.Internal(err)
	}
	fingerprint, err := s.hasher.Hash(refresh.Raw)
	if err != nil {
		return Pair{}, "", apperr.Internal(err)
	}
	return Pair{Access: access, Refresh: refresh}, fingerprint, nil
}

func (s *Service) publish(ctx context.Context, t EventType, userID string, at time.Time) {
	s.events.Publish(ctx, Event{Type: t, UserID: userID, At: at})
}

func kindOf(err error) apperr.Kind {
	return apperr.From(err).Kind
}
