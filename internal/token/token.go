// Package token issues and verifies the signed, time-bounded tokens that
// bind a subject to a project suffix. Tokens are HS256 JWTs persisted to
// the token store with their derived fields, so membership and expiration
// checks never re-parse the signed string.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
)

const issuer = "doi-server"

// ErrForbidden is the single verification failure. Signature, structure,
// store membership, expiration and role-claim checks all collapse into it
// so a caller cannot learn which check failed.
var ErrForbidden = errors.New("token verification failed")

// Claims are the JWT claims carried by an issued token: the registered
// set plus the numeric project-suffix claim.
type Claims struct {
	ProjectID int64 `json:"projectID"`
	jwt.RegisteredClaims
}

// Service issues and verifies tokens against a signing secret, a validity
// window and the token store.
type Service struct {
	secret   []byte
	validity time.Duration
	store    plugin.TokenStore
	now      func() time.Time
}

// New creates a token service. now defaults to time.Now when nil.
func New(secret []byte, validity time.Duration, store plugin.TokenStore, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}

	return &Service{
		secret:   secret,
		validity: validity,
		store:    store,
		now:      now,
	}
}

// Issue signs a token binding (subject, suffix) with the configured
// validity window and persists it. If persistence fails the signed string
// is discarded and the token counts as never issued.
func (s *Service) Issue(ctx context.Context, subject string, suffix int64) (string, error) {
	now := s.now().UTC()
	expires := now.Add(s.validity)

	claims := Claims{
		ProjectID: suffix,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	err = s.store.Save(ctx, plugin.Token{
		Signed:    signed,
		Subject:   subject,
		Suffix:    suffix,
		ExpiresAt: expires,
	})
	if err != nil {
		return "", fmt.Errorf("record token: %w", err)
	}

	return signed, nil
}

// Exists reports store membership without any signature check.
func (s *Service) Exists(ctx context.Context, signed string) (bool, error) {
	return s.store.Exists(ctx, signed)
}

// IsExpired compares the stored expiration against the current time. An
// unknown token counts as expired.
func (s *Service) IsExpired(ctx context.Context, signed string) (bool, error) {
	stored, found, err := s.store.Get(ctx, signed)
	if err != nil {
		return true, err
	}

	if !found {
		return true, nil
	}

	return stored.Expired(s.now()), nil
}

// Lookup returns the stored token record for the signed string.
func (s *Service) Lookup(ctx context.Context, signed string) (plugin.Token, bool, error) {
	return s.store.Get(ctx, signed)
}

// Verify runs the full check chain: signature and structure, store
// membership, expiration, and (when assertedRole >= 0) agreement between
// the project-suffix claim and the role the caller asserts. Every failure
// yields ErrForbidden; backend errors pass through for the caller to map
// to a server error.
func (s *Service) Verify(ctx context.Context, signed string, assertedRole int64) (Claims, error) {
	claims, err := s.parse(signed)
	if err != nil {
		return Claims{}, ErrForbidden
	}

	stored, found, err := s.store.Get(ctx, signed)
	if err != nil {
		return Claims{}, err
	}

	if !found {
		return Claims{}, ErrForbidden
	}

	if stored.Expired(s.now()) {
		return Claims{}, ErrForbidden
	}

	if assertedRole >= 0 && claims.ProjectID != assertedRole {
		return Claims{}, ErrForbidden
	}

	return claims, nil
}

// Revoke deletes the token from the store. Verification then treats it as
// forbidden, making deletion an effective revocation.
func (s *Service) Revoke(ctx context.Context, signed string) (bool, error) {
	return s.store.Delete(ctx, signed)
}

// parse checks signature and structural validity.
func (s *Service) parse(signed string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(signed, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrForbidden
		}

		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrForbidden
	}

	if claims.Issuer != issuer || claims.Subject == "" {
		return Claims{}, ErrForbidden
	}

	return *claims, nil
}
