package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"matchcore/pkg/requestcontext"
)

// CronCallerID identifies calls authenticated with the cron secret.
const CronCallerID = "cron"

// CronSecretHeader carries the scheduler's shared secret.
const CronSecretHeader = "X-Cron-Secret"

// CallerValidator turns a bearer token into a caller identity.
type CallerValidator interface {
	ValidateToken(tokenString string) (string, error)
}

// HS256Validator validates admin JWTs signed with a shared key. The caller
// identity is the token subject.
type HS256Validator struct {
	key    []byte
	issuer string
	leeway time.Duration
}

func NewHS256Validator(signingKey, issuer string) *HS256Validator {
	return &HS256Validator{key: []byte(signingKey), issuer: issuer, leeway: 30 * time.Second}
}

func (v *HS256Validator) ValidateToken(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// RequireCaller admits a request carrying either a valid admin bearer token
// or the cron secret, and records the caller identity in the context. An
// empty cronSecret disables the secret path; a nil validator disables the
// token path.
func RequireCaller(validator CallerValidator, cronSecret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if secret := r.Header.Get(CronSecretHeader); secret != "" && cronSecret != "" {
				if subtle.ConstantTimeCompare([]byte(secret), []byte(cronSecret)) == 1 {
					next.ServeHTTP(w, r.WithContext(requestcontext.WithCallerID(ctx, CronCallerID)))
					return
				}
				logger.WarnContext(ctx, "unauthorized access - cron secret mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid cron secret")
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || validator == nil {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}
			callerID, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithCallerID(ctx, callerID)))
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	_ = json.NewEncoder(w).Encode(body)
}
