package middleware

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/platinummonkey/sitepass/pkg/contextkeys"
	"github.com/platinummonkey/sitepass/pkg/httputil"
	"github.com/platinummonkey/sitepass/pkg/observability"
)

// ErrInvalidToken is returned by verifiers for any token they reject
var ErrInvalidToken = errors.New("invalid or expired token")

// Principal is the authenticated caller. UserID is the identity provider's
// subject and is what team memberships are keyed on.
type Principal struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// TokenVerifier turns a bearer token into a Principal
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// Claims are the JWT claims issued by JWTVerifier
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// JWTVerifier validates HS256 tokens signed with a shared secret
type JWTVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTVerifier creates a verifier for tokens from issuer
func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	if issuer == "" {
		issuer = "sitepass"
	}
	return &JWTVerifier{secret: secret, issuer: issuer, now: time.Now}
}

// Sign issues a token for p that expires after ttl
func (v *JWTVerifier) Sign(p Principal, ttl time.Duration) (string, error) {
	if p.UserID == "" {
		return "", fmt.Errorf("user ID is required")
	}
	now := v.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: p.Email,
		Name:  p.Name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify implements TokenVerifier
func (v *JWTVerifier) Verify(_ context.Context, raw string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Principal{UserID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// OIDCVerifier validates ID tokens from an OpenID Connect provider
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider at issuer and verifies tokens
// minted for audience
func NewOIDCVerifier(ctx context.Context, issuer, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: audience})}, nil
}

// NewStaticOIDCVerifier verifies tokens against fixed public keys without
// provider discovery
func NewStaticOIDCVerifier(issuer, audience string, keys ...crypto.PublicKey) *OIDCVerifier {
	keySet := &oidc.StaticKeySet{PublicKeys: keys}
	return &OIDCVerifier{verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: audience})}
}

// Verify implements TokenVerifier
func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (*Principal, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &Principal{UserID: idToken.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// AuthMiddleware rejects requests without a valid bearer token
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *observability.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(verifier TokenVerifier, logger *observability.Logger) *AuthMiddleware {
	if logger == nil {
		logger = observability.Discard()
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		principal, err := m.verifier.Verify(r.Context(), parts[1])
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Debug("token rejected")
			httputil.WriteUnauthorized(w, ErrInvalidToken.Error())
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		ctx = observability.WithUserID(ctx, principal.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromContext returns the caller set by AuthMiddleware
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextkeys.PrincipalKey).(*Principal)
	return p, ok && p != nil
}
