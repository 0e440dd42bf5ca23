package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/pivot-reports/pkg/adapters"
	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/de-tools/pivot-reports/pkg/models/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultTTL = 5 * 24 * time.Hour
	issuer     = "pivot-reports"
)

var ErrInvalidToken = errors.New("invalid callback token")

// Claims is what a callback token proves: who asked for which report.
type Claims struct {
	ID        string
	Owner     string
	Payload   domain.ReportParameters
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Signer interface {
	Sign(owner string, payload domain.ReportParameters) (string, error)
	Verify(raw string) (*Claims, error)
}

type callbackClaims struct {
	Owner   string                 `json:"owner,omitempty"`
	Payload store.ReportParameters `json:"payload"`
	jwt.RegisteredClaims
}

type hmacSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) (Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &hmacSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (s *hmacSigner) Sign(owner string, payload domain.ReportParameters) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, callbackClaims{
		Owner:   owner,
		Payload: adapters.MapDomainParametersToStore(payload),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign callback token: %w", err)
	}
	return signed, nil
}

func (s *hmacSigner) Verify(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &callbackClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*callbackClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	res := &Claims{
		ID:      claims.ID,
		Owner:   claims.Owner,
		Payload: adapters.MapStoreParametersToDomain(claims.Payload),
	}
	if claims.IssuedAt != nil {
		res.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return res, nil
}
