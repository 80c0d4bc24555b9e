package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Token types carried in Claims.Type.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var errNotAccessToken = errors.New("not an access token")

// Claims represents the identity token payload. Subject is the identity-provider subject id.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role,omitempty"`
	Type    string `json:"tokenType"`
	jwt.RegisteredClaims
}

// Issue issues signed access and refresh tokens for subject.
func Issue(subject, role, issuer, key string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(accessTTL)
	refreshExp := now.Add(refreshTTL)

	accessToken, err := sign(newClaims(subject, role, issuer, TypeAccess, now, accessExp), key)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := sign(newClaims(subject, role, issuer, TypeRefresh, now, refreshExp), key)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func newClaims(subject, role, issuer, typ string, now, exp time.Time) Claims {
	return Claims{
		Subject: subject,
		Role:    role,
		Type:    typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

func sign(claims jwt.Claims, key string) (string, error) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	return s, errors.Wrap(err, "sign token")
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, keyFunc(key))
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("token has no subject")
	}
	return *claims, nil
}

// ParseAccess is Parse restricted to access tokens.
func ParseAccess(tokenStr, key, issuer string) (Claims, error) {
	claims, err := Parse(tokenStr, key, issuer)
	if err != nil {
		return Claims{}, err
	}
	if claims.Type != TypeAccess {
		return Claims{}, errNotAccessToken
	}
	return claims, nil
}

func keyFunc(key string) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	}
}
