package auth

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"photoattend/internal/apperr"
	"photoattend/internal/attendance"
	"photoattend/internal/store"
)

// Session is what a successful sign-in returns.
type Session struct {
	TokenPair
	UserID string          `json:"user_id"`
	Role   attendance.Role `json:"role"`
}

// Service is the identity provider: sign-up, sign-in, refresh and sign-out.
type Service struct {
	db     *store.DB
	signer *Signer
	now    func() time.Time
}

// NewService creates an identity service.
func NewService(db *store.DB, signer *Signer) *Service {
	return &Service{db: db, signer: signer, now: time.Now}
}

var errBadLogin = apperr.New(apperr.KindUnauthenticated, "Invalid login credentials")

// NormalizeEmail trims, lowercases and validates an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Newf(apperr.KindInvalidArgument, "invalid email address %q", email)
	}
	return email, nil
}

// Signup creates the profile, its credentials and a user role in one transaction, then signs in.
func (s *Service) Signup(ctx context.Context, email, password, fullName string) (Session, error) {
	userID, err := s.CreateUser(ctx, email, password, fullName, attendance.RoleUser)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, userID)
}

// CreateUser provisions an account with the given role. Used by Signup and the admin tool.
func (s *Service) CreateUser(ctx context.Context, email, password, fullName string, role attendance.Role) (string, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}
	if !role.Valid() {
		return "", apperr.Newf(apperr.KindInvalidArgument, "unknown role %q", role)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	id := uuid.NewString()
	err = store.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx store.DBTX) error {
		profiles := store.NewProfiles(tx)
		if _, err := profiles.GetByEmail(ctx, email); err == nil {
			return apperr.New(apperr.KindConflict, "User already registered")
		} else if !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
		p := attendance.Profile{
			ID:        id,
			Email:     email,
			FullName:  null.NewString(strings.TrimSpace(fullName), strings.TrimSpace(fullName) != ""),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := profiles.Create(ctx, p); err != nil {
			return err
		}
		if err := store.NewCredentials(tx).Set(ctx, id, hash, now); err != nil {
			return err
		}
		return store.NewRoles(tx).Assign(ctx, attendance.RoleAssignment{
			ID: uuid.NewString(), UserID: id, Role: role, CreatedAt: now,
		})
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return "", err
		}
		return "", apperr.Wrap(apperr.KindInternal, err)
	}
	slog.Info("user created", "user_id", id, "role", role)
	return id, nil
}

// Login verifies the password and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return Session{}, errBadLogin
	}
	p, err := store.NewProfiles(s.db.X).GetByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Session{}, errBadLogin
		}
		return Session{}, apperr.Wrap(apperr.KindInternal, err)
	}
	hash, err := store.NewCredentials(s.db.X).Hash(ctx, p.ID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Session{}, errBadLogin
		}
		return Session{}, apperr.Wrap(apperr.KindInternal, err)
	}
	if !CheckPassword(hash, password) {
		return Session{}, errBadLogin
	}
	return s.issue(ctx, p.ID)
}

// SetPassword replaces a user's password.
func (s *Service) SetPassword(ctx context.Context, userID, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := store.NewProfiles(s.db.X).Get(ctx, userID); err != nil {
		return err
	}
	return store.NewCredentials(s.db.X).Set(ctx, userID, hash, s.now())
}

// Refresh rotates a stored refresh token: the old one is revoked and a new pair issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.signer.Parse(refreshToken, TypeRefresh)
	if err != nil {
		return Session{}, apperr.New(apperr.KindUnauthenticated, "Invalid Refresh Token")
	}
	tokens := store.NewRefreshTokens(s.db.X)
	row, err := tokens.Get(ctx, refreshToken)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Session{}, apperr.New(apperr.KindUnauthenticated, "Invalid Refresh Token")
		}
		return Session{}, apperr.Wrap(apperr.KindInternal, err)
	}
	if row.Revoked || !row.ExpiresAt.After(s.now()) || row.UserID != claims.Subject {
		return Session{}, apperr.New(apperr.KindUnauthenticated, "Invalid Refresh Token")
	}
	live, err := tokens.Revoke(ctx, refreshToken)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, err)
	}
	if !live {
		// lost a race with a concurrent refresh or logout
		return Session{}, apperr.New(apperr.KindUnauthenticated, "Invalid Refresh Token")
	}
	return s.issue(ctx, row.UserID)
}

// Logout revokes the refresh token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if _, err := store.NewRefreshTokens(s.db.X).Revoke(ctx, refreshToken); err != nil {
		return apperr.Wrap(apperr.KindInternal, err)
	}
	return nil
}

func (s *Service) issue(ctx context.Context, userID string) (Session, error) {
	role, err := store.NewRoles(s.db.X).Lookup(ctx, userID)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, err)
	}
	pair, err := s.signer.Issue(userID, string(role))
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, err)
	}
	err = store.NewRefreshTokens(s.db.X).Save(ctx, store.RefreshToken{
		Token:     pair.RefreshToken,
		UserID:    userID,
		ExpiresAt: pair.RefreshExp,
		CreatedAt: s.now(),
	})
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, err)
	}
	return Session{TokenPair: pair, UserID: userID, Role: role}, nil
}
