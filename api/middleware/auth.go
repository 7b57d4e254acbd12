package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/smilequote-backend/api/responses"
	pkgAuth "github.com/angelmondragon/smilequote-backend/pkg/auth"
	"github.com/angelmondragon/smilequote-backend/pkg/auth/session"
	"github.com/angelmondragon/smilequote-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/smilequote-backend/pkg/errors"
	"github.com/angelmondragon/smilequote-backend/pkg/logger"
)

// Auth validates a bearer token once per request and seeds the context with
// the caller's AuthContext.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			ident := claims.AuthContext()
			if err := ident.Validate(); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if verifier != nil {
				ok, err := verifier.HasSession(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			ctx := WithAuthContext(r.Context(), ident)
			ctx = withAccessID(ctx, claims.ID)
			if logg != nil {
				fields := map[string]any{
					"user_id":    ident.UserID.String(),
					"actor_role": string(ident.Role),
				}
				if ident.ClinicID != nil {
					fields["clinic_id"] = ident.ClinicID.String()
				}
				ctx = logg.WithFields(ctx, fields)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	return raw
}
