package devapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	typAccess  = "access"
	typRefresh = "refresh"
)

type claims struct {
	Typ      string `json:"typ"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// issue creates a signed HS256 JWT of the given type for userID.
func (ti *tokenIssuer) issue(typ string, userID int64, username string) (string, error) {
	ttl := ti.accessTTL
	if typ == typRefresh {
		ttl = ti.refreshTTL
	}
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	now := ti.now()
	c := claims{
		Typ:      typ,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(ti.key)
}

// verify checks signature, expiry and type and returns the subject user ID.
func (ti *tokenIssuer) verify(tok, typ string) (int64, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(tok, &c, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return ti.key, nil
	}, jwt.WithTimeFunc(ti.now), jwt.WithLeeway(5*time.Second))
	if err != nil || !parsed.Valid {
		return 0, errors.New("invalid token")
	}
	if c.Typ != typ {
		return 0, errors.New("wrong token type")
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("bad subject")
	}
	return id, nil
}
