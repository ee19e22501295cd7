package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"job-board/internal/domain"
)

var (
	errMalformedToken = errors.New("invalid token format")
	errBadSignature   = errors.New("invalid token signature")
	errTokenExpired   = errors.New("token expired")
)

// Claims are the bearer token claims issued by the user service.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Exp    int64  `json:"exp"`
	Iat    int64  `json:"iat"`
}

// TokenProvider signs and verifies HS256 bearer tokens.
type TokenProvider struct {
	secret []byte
	now    func() time.Time
}

func NewTokenProvider(secret string) *TokenProvider {
	return &TokenProvider{secret: []byte(secret), now: time.Now}
}

// Sign issues a token; the API only verifies them, Sign serves tooling and tests.
func (p *TokenProvider) Sign(userID string, role domain.Role, ttl time.Duration) (string, error) {
	now := p.now().UTC()
	header, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(Claims{
		UserID: userID,
		Role:   string(role),
		Exp:    now.Add(ttl).Unix(),
		Iat:    now.Unix(),
	})
	if err != nil {
		return "", err
	}
	input := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
	return input + "." + p.sign(input), nil
}

func (p *TokenProvider) Parse(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errMalformedToken
	}
	input := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(p.sign(input))) {
		return nil, errBadSignature
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errMalformedToken
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, errMalformedToken
	}
	if claims.UserID == "" {
		return nil, errMalformedToken
	}
	if claims.Exp > 0 && p.now().UTC().Unix() > claims.Exp {
		return nil, errTokenExpired
	}
	return &claims, nil
}

func (p *TokenProvider) sign(input string) string {
	h := hmac.New(sha256.New, p.secret)
	h.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller.
type Principal struct {
	IdentityID string
	Role       domain.Role
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// Authenticate rejects requests without a valid bearer token.
func Authenticate(tokens *TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				writeMessage(w, http.StatusUnauthorized, "User is not authenticated.")
				return
			}
			claims, err := tokens.Parse(strings.TrimSpace(token))
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "Invalid token: "+err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, Principal{
				IdentityID: claims.UserID,
				Role:       domain.Role(claims.Role),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole only lets callers with the given role through. It must run after Authenticate.
func RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "User is not authenticated.")
				return
			}
			if p.Role != role {
				writeMessage(w, http.StatusForbidden, string(p.Role)+" not allowed to access this resource.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
