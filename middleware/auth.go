package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"taskmanager/access"
	"taskmanager/models"
	"taskmanager/tokens"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const UserContextKey contextKey = "user"

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

var ErrTokenRevoked = errors.New("token has been revoked")

type Claims struct {
	UserID    uint   `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is what the token endpoints hand out.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Tokens issues and verifies HS256 access/refresh tokens.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	revoked    tokens.Revoker
	now        func() time.Time
}

func NewTokens(secret string, accessTTL, refreshTTL time.Duration, revoked tokens.Revoker) *Tokens {
	return &Tokens{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		revoked:    revoked,
		now:        time.Now,
	}
}

func (t *Tokens) sign(userID uint, typ string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := &Claims{
		UserID:    userID,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprint(userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

func (t *Tokens) Issue(user *models.User) (TokenPair, error) {
	accessToken, err := t.sign(user.ID, TokenAccess, t.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := t.sign(user.ID, TokenRefresh, t.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: accessToken, Refresh: refreshToken}, nil
}

// Validate parses tokenString and checks it is an unexpired token of the
// wanted type.
func (t *Tokens) Validate(tokenString, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%w: expected %s token", jwt.ErrTokenInvalidClaims, wantType)
	}
	return claims, nil
}

// Rotate exchanges a refresh token for a new pair and revokes the old
// refresh token, so each refresh token works once. Concurrent rotations of
// the same token race on RevokeOnce and only the winner gets a pair.
func (t *Tokens) Rotate(ctx context.Context, refresh string) (TokenPair, uint, error) {
	claims, err := t.Validate(refresh, TokenRefresh)
	if err != nil {
		return TokenPair{}, 0, err
	}
	first, err := t.revoked.RevokeOnce(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return TokenPair{}, 0, err
	}
	if !first {
		return TokenPair{}, 0, ErrTokenRevoked
	}
	pair, err := t.Issue(&models.User{ID: claims.UserID})
	return pair, claims.UserID, err
}

// Revoke invalidates a refresh token (logout).
func (t *Tokens) Revoke(ctx context.Context, refresh string) error {
	claims, err := t.Validate(refresh, TokenRefresh)
	if err != nil {
		return err
	}
	return t.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

type UserLoader interface {
	UserByID(ctx context.Context, id uint) (*models.User, error)
}

func bearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// AuthMiddleware requires a valid access token and puts the account it
// names into the request context.
func AuthMiddleware(t *Tokens, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearer(r)
			if tokenString == "" {
				unauthorized(w, access.ErrUnauthenticated.Message)
				return
			}

			claims, err := t.Validate(tokenString, TokenAccess)
			if err != nil {
				unauthorized(w, "Given token not valid for any token type")
				return
			}

			// The account may have been deleted since the token was issued.
			user, err := users.UserByID(r.Context(), claims.UserID)
			if err != nil {
				unauthorized(w, "User not found")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// IdentityFromContext is the explicit identity handed to the access
// package; anonymous when no user is attached.
func IdentityFromContext(ctx context.Context) access.Identity {
	if u := GetUserFromContext(ctx); u != nil {
		return access.As(u.ID)
	}
	return access.Identity{}
}

// WithUser attaches user to ctx the same way AuthMiddleware does.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}
