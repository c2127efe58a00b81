package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes the purpose of a token. Both kinds share the same claims shape.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// InvalidReason tags why a token failed verification.
type InvalidReason string

const (
	ReasonNone           InvalidReason = ""
	ReasonMalformed      InvalidReason = "malformed"
	ReasonBadSignature   InvalidReason = "bad_signature"
	ReasonExpired        InvalidReason = "expired"
	ReasonMissingSubject InvalidReason = "missing_subject"
)

// Verification is the outcome of checking a token. Expected failures are reported
// through Valid and Reason, never as errors.
type Verification struct {
	Subject   string
	Kind      TokenKind
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Valid     bool
	Reason    InvalidReason
}

// Claims is the wire shape of every issued token.
type Claims struct {
	Type TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 bearer tokens. The signing key is fixed
// at construction and only read afterwards.
type TokenService struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

type TokenOption func(*TokenService)

// WithClock replaces the wall clock used for issuing and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewTokenService(key []byte, accessTTL time.Duration, refreshTTL time.Duration, opts ...TokenOption) (*TokenService, error) {
	if len(key) == 0 {
		return nil, errors.New("token signing key is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)

	s := &TokenService{
		key:        keyCopy,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
		// Expiry is checked by Verify with millisecond precision, so the parser
		// only checks structure, algorithm and signature.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken signs a short-lived token for subject.
func (s *TokenService) IssueAccessToken(subject string) (string, error) {
	return s.issue(subject, TokenAccess, s.accessTTL)
}

// IssueRefreshToken signs a long-lived token for subject.
func (s *TokenService) IssueRefreshToken(subject string) (string, error) {
	return s.issue(subject, TokenRefresh, s.refreshTTL)
}

func (s *TokenService) issue(subject string, kind TokenKind, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("token subject is required")
	}

	issuedAt := s.now().UTC()
	claims := Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify checks signature, structure and expiry. A token is expired once
// now >= expiresAt, compared in epoch milliseconds.
func (s *TokenService) Verify(token string) Verification {
	v, claims := s.parse(token)
	if v.Reason != ReasonNone {
		return v
	}

	if claims.ExpiresAt == nil {
		v.Reason = ReasonMalformed
		return v
	}
	if s.now().UnixMilli() >= v.ExpiresAt.UnixMilli() {
		v.Reason = ReasonExpired
		return v
	}

	v.Valid = true
	return v
}

// ExtractSubject returns the subject of a correctly signed token whether or not
// it has expired.
func (s *TokenService) ExtractSubject(token string) (string, bool) {
	v, _ := s.parse(token)
	if v.Reason != ReasonNone {
		return "", false
	}
	return v.Subject, true
}

func (s *TokenService) parse(token string) (Verification, *Claims) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Verification{Reason: ReasonMalformed}, nil
	}

	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Verification{Reason: ReasonBadSignature}, nil
		}
		return Verification{Reason: ReasonMalformed}, nil
	}

	v := Verification{
		Subject: strings.TrimSpace(claims.Subject),
		Kind:    claims.Type,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		v.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		v.ExpiresAt = claims.ExpiresAt.Time
	}
	if v.Subject == "" {
		v.Reason = ReasonMissingSubject
	}
	return v, claims
}
