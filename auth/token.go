package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const issuer = "social-graph-backend"

var ErrInvalidToken = errors.New("invalid token")

type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret []byte, ttl time.Duration) *Signer {
	return &Signer{secret: secret, ttl: ttl, now: time.Now}
}

// AccessToken issues an HS256 token for userID bound to the device ip.
func (s *Signer) AccessToken(userID uint, ip string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{ip},
		Subject:   strconv.FormatUint(uint64(userID), 10),
	})
	return token.SignedString(s.secret)
}

// Parse verifies the token and returns its subject and audience.
func (s *Signer) Parse(raw string) (uint, string, error) {
	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !t.Valid {
		return 0, "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Issuer != issuer || len(claims.Audience) != 1 {
		return 0, "", ErrInvalidToken
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, "", ErrInvalidToken
	}
	return uint(uid), claims.Audience[0], nil
}

func (s *Signer) TTL() time.Duration {
	return s.ttl
}
