package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"

	"tabi-api/domain"
)

const sessionIssuerName = "tabi-api/session"

// TokenIssuer signs session grants into short-lived HS256 tokens that the
// document-store side accepts for room access.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer signing with the given shared secret.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if len(secret) == 0 {
		panic("api.NewTokenIssuer: empty signing secret")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: secret, ttl: ttl}
}

// sessionPayload is the body relayed back to the connecting client.
type sessionPayload struct {
	Token       string `json:"token"`
	PrincipalID string `json:"principalId"`
	DisplayName string `json:"displayName,omitempty"`
	RoomID      string `json:"roomId,omitempty"`
	Capability  string `json:"capability"`
}

// Issue signs the grant and returns the status and body the endpoint
// relays verbatim.
func (i *TokenIssuer) Issue(ctx context.Context, grant domain.SessionGrant) (int, []byte, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  sessionIssuerName,
		"sub":  grant.PrincipalID,
		"iat":  now.Unix(),
		"exp":  now.Add(i.ttl).Unix(),
		"cap":  string(grant.Capability),
		"anon": grant.Anonymous,
	}
	if grant.RoomID != "" {
		claims["room"] = grant.RoomID
	}
	if grant.DisplayName != "" {
		claims["name"] = grant.DisplayName
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return 0, nil, err
	}
	body, err := sonic.Marshal(sessionPayload{
		Token:       signed,
		PrincipalID: grant.PrincipalID,
		DisplayName: grant.DisplayName,
		RoomID:      grant.RoomID,
		Capability:  string(grant.Capability),
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, body, nil
}

// Verify parses a token issued by Issue and rebuilds the grant it carries.
func (i *TokenIssuer) Verify(token string) (domain.SessionGrant, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	parsed, err := parser.Parse(token, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return domain.SessionGrant{}, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return domain.SessionGrant{}, errors.New("invalid claims")
	}
	now := time.Now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return domain.SessionGrant{}, errors.New("session expired")
	}
	if !claims.VerifyIssuer(sessionIssuerName, true) {
		return domain.SessionGrant{}, errors.New("invalid issuer")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return domain.SessionGrant{}, errors.New("missing sub")
	}
	capability, _ := claims["cap"].(string)
	room, _ := claims["room"].(string)
	name, _ := claims["name"].(string)
	anon, _ := claims["anon"].(bool)
	return domain.SessionGrant{
		PrincipalID: sub,
		DisplayName: name,
		Anonymous:   anon,
		RoomID:      room,
		Capability:  domain.Capability(capability),
	}, nil
}
