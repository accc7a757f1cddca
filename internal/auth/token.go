package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/timmy/memefeed/internal/domain"
)

// Claims is the subset of the meme service token read by the BFF.
// The service puts the user id in "id"; "sub" is accepted as well.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Subject returns the user id carried by token without checking the signature.
// Only use it where the token is forwarded to the meme service, which verifies it.
// Anything the BFF authorizes on its own goes through a Verifier.
func Subject(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.NewUnauthorizedError("auth.Subject", "missing token")
	}

	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", &domain.Error{Kind: domain.KindUnauthorized, Op: "auth.Subject", Msg: "malformed token", Err: err}
	}

	return subjectOf("auth.Subject", &claims)
}

// Verifier checks HS256 signatures against the secret shared with the meme service.
type Verifier struct {
	key []byte
}

// NewVerifier returns a verifier for secret. An empty secret rejects every token.
func NewVerifier(secret string) *Verifier {
	return &Verifier{key: []byte(secret)}
}

// Subject verifies token and returns the user id it carries.
func (v *Verifier) Subject(token string) (string, error) {
	const op = "auth.Verify"

	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.NewUnauthorizedError(op, "missing token")
	}
	if v == nil || len(v.key) == 0 {
		return "", domain.NewUnauthorizedError(op, "token verification is not configured")
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", &domain.Error{Kind: domain.KindUnauthorized, Op: op, Msg: jwtMessage(err), Err: err}
	}
	return subjectOf(op, &claims)
}

func subjectOf(op string, claims *Claims) (string, error) {
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", domain.NewUnauthorizedError(op, "token has no user id")
}

func jwtMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "token signature is invalid"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "token algorithm is not accepted"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token is expired"
	}
	return "malformed token"
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
