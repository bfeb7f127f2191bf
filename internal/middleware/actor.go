package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dukerupert/choregate/internal/auth"
	"github.com/dukerupert/choregate/internal/model"
)

// ActorHeader carries the authenticated user id, set by the upstream auth proxy.
const ActorHeader = "X-Actor-ID"

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// RequireActor resolves ActorHeader against the user store and stores the
// actor in the request context. Requests without a known user get 401.
func RequireActor(users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(r.Header.Get(ActorHeader), 10, 64)
			if err != nil || id <= 0 {
				writeError(w, http.StatusUnauthorized, "missing or invalid "+ActorHeader)
				return
			}
			u, err := users.GetByID(r.Context(), id)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if u == nil {
				writeError(w, http.StatusUnauthorized, "unknown user")
				return
			}

			actor := auth.ActorFor(u)
			reportActor(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
