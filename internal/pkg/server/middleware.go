package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/anicoll/dronelink/pkg/hasher"
)

const TokenIssuer = "dronelink"

var errUnauthorized = errors.New("missing or invalid bearer token")

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func LoggingMiddleware(next http.Handler) http.Handler {
	logger := zap.L()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		logger.Info(r.RequestURI,
			zap.String("method", r.Method),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// AuthMiddleware requires a bearer token on every request except the health check.
// A token is accepted if it matches tokenHash or is an HS256 JWT signed with jwtSecret.
// Empty credentials are skipped.
func AuthMiddleware(tokenHash string, jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || !(tokenHash != "" && hasher.TokenMatches(token, tokenHash) || validJWT(token, jwtSecret)) {
				handleError(w, http.StatusUnauthorized, errUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validJWT(token string, secret []byte) bool {
	if len(secret) == 0 {
		return false
	}
	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(TokenIssuer), jwt.WithExpirationRequired())
	return err == nil && parsed.Valid
}

// NewJWT issues an operator token valid for ttl.
func NewJWT(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    TokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
