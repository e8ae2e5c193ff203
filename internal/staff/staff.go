// Package staff manages back-office accounts, sessions and API keys.
package staff

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"citizenportal/internal/domain"
	"citizenportal/internal/engine/auth"
	"citizenportal/internal/events"
	"citizenportal/internal/repo"
)

const (
	minPasswordLength = 8
	apiKeyPrefix      = "cpk_"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSecret           = errors.New("jwt secret not configured")
)

type Service struct {
	Repo   repo.Repo
	Events events.Writer
	Secret string
	TTL    time.Duration
	Issuer string
	Now    func() time.Time
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type CreateOptions struct {
	Email      string
	Password   string
	Role       string
	Department string
	ActorID    string
}

// Create registers a staff account with a bcrypt password hash.
func (s Service) Create(ctx context.Context, opts CreateOptions) (domain.StaffUser, error) {
	email := strings.ToLower(strings.TrimSpace(opts.Email))
	verr := &domain.ValidationError{}
	if !domain.ValidEmail(email) {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "email", Reason: "must be a valid email address"})
	}
	if len(opts.Password) < minPasswordLength {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength)})
	}
	if !auth.ValidRole(opts.Role) {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "role", Reason: "must be admin, officer or viewer"})
	}
	if len(verr.Fields) > 0 {
		return domain.StaffUser{}, verr
	}
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), cost)
	if err != nil {
		return domain.StaffUser{}, fmt.Errorf("hash password: %w", err)
	}
	u := domain.StaffUser{
		ID:           uuid.NewString(),
		Email:        email,
		Role:         opts.Role,
		Department:   strings.TrimSpace(opts.Department),
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
	}
	err = s.Repo.InsertStaff(ctx, u, func(tx *sql.Tx) error {
		return s.Events.Append(ctx, tx, events.StaffCreated, "staff", u.ID, opts.ActorID, events.EventPayload{"email": u.Email, "role": u.Role})
	})
	if err != nil {
		return domain.StaffUser{}, err
	}
	return u, nil
}

// Session is an issued staff token.
type Session struct {
	Token     string           `json:"token"`
	ExpiresAt string           `json:"expiresAt"`
	Staff     domain.StaffUser `json:"staff"`
}

// Claims carried by a staff session token.
type Claims struct {
	jwt.RegisteredClaims
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
}

// Login checks the password and issues an HS256 token.
func (s Service) Login(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return Session{}, ErrNoSecret
	}
	u, err := s.Repo.GetStaffByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.Issue(u)
}

// Issue signs a session token for u.
func (s Service) Issue(u domain.StaffUser) (Session, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return Session{}, ErrNoSecret
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    s.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:      u.Email,
		Role:       u.Role,
		Department: u.Department,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, ExpiresAt: exp.Format(time.RFC3339), Staff: u}, nil
}

// Verify parses and validates a session token.
func (s Service) Verify(token string) (Claims, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return Claims{}, ErrNoSecret
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.Issuer))
	}
	claims := &Claims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(s.Secret), nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return Claims{}, errors.New("invalid token")
	}
	return *claims, nil
}

// SetRole changes a staff member's role. Permission checks read the stored
// role, so the change applies to tokens already issued.
func (s Service) SetRole(ctx context.Context, staffID, role, actorID string) error {
	if !auth.ValidRole(role) {
		return &domain.ValidationError{Fields: []domain.FieldError{{Field: "role", Reason: "must be admin, officer or viewer"}}}
	}
	return s.Repo.SetStaffRole(ctx, staffID, role, func(tx *sql.Tx) error {
		return s.Events.Append(ctx, tx, events.StaffRoleChanged, "staff", staffID, actorID, events.EventPayload{"role": role})
	})
}

// CreateAPIKey returns the plaintext key once; only its hash is stored.
func (s Service) CreateAPIKey(ctx context.Context, staffID, name string) (string, domain.APIKey, error) {
	if _, err := s.Repo.GetStaff(ctx, staffID); err != nil {
		return "", domain.APIKey{}, err
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", domain.APIKey{}, err
	}
	plain := apiKeyPrefix + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		StaffID:   staffID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}
	if err := s.Repo.InsertAPIKey(ctx, key); err != nil {
		return "", domain.APIKey{}, err
	}
	return plain, key, nil
}

// AuthenticateAPIKey resolves a plaintext key to its owner.
func (s Service) AuthenticateAPIKey(ctx context.Context, plain string) (domain.StaffUser, error) {
	if strings.TrimSpace(plain) == "" {
		return domain.StaffUser{}, ErrInvalidCredentials
	}
	key, err := s.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(plain))
	if errors.Is(err, repo.ErrNotFound) {
		return domain.StaffUser{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.StaffUser{}, err
	}
	u, err := s.Repo.GetStaff(ctx, key.StaffID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.StaffUser{}, ErrInvalidCredentials
	}
	return u, err
}
