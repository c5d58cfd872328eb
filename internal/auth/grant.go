// Package auth signs recovery grants: short-lived, single-use JWTs that prove
// a user passed recovery-contact verification and may set a new master
// password without the old one.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const audience = "vaulture-recovery"

// DefaultGrantTTL is used when NewGrants gets a non-positive ttl.
const DefaultGrantTTL = 10 * time.Minute

// Claims carries the verified channels next to the registered claims.
// Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Channels []string `json:"chn,omitempty"`
}

// Grants issues and redeems recovery grants. The signing key lives only in
// memory, so grants do not survive a restart.
type Grants struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	spent map[string]time.Time
}

// NewGrants returns Grants signing with a fresh random key.
func NewGrants(ttl time.Duration, now func() time.Time) *Grants {
	if ttl <= 0 {
		ttl = DefaultGrantTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Grants{
		secret: common.GenerateRandByteArray(32),
		ttl:    ttl,
		now:    now,
		spent:  make(map[string]time.Time),
	}
}

// Issue signs a grant for userID naming the verified channels.
func (g *Grants) Issue(userID uuid.UUID, channels []string) (string, error) {
	now := g.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
		Channels: channels,
	})

	tokenString, err := token.SignedString(g.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

func (g *Grants) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", common.ErrInvalidGrant)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidGrant, err)
	}
	if !token.Valid || claims.ID == "" {
		return nil, common.ErrInvalidGrant
	}
	return claims, nil
}

// Redeem validates tokenString and marks it spent. A grant redeems once.
func (g *Grants) Redeem(tokenString string) (uuid.UUID, error) {
	claims, err := g.parse(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", common.ErrInvalidGrant)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for id, exp := range g.spent {
		if now.After(exp) {
			delete(g.spent, id)
		}
	}
	if _, used := g.spent[claims.ID]; used {
		return uuid.Nil, fmt.Errorf("%w: already used", common.ErrInvalidGrant)
	}
	g.spent[claims.ID] = claims.ExpiresAt.Time
	return userID, nil
}
