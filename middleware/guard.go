package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/boardguard"
	"github.com/MrEthical07/boardguard/jwt"
)

type decisionContextKey struct{}

// DecisionFromContext returns the guard decision recorded for the request.
func DecisionFromContext(ctx context.Context) (boardguard.Decision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(boardguard.Decision)
	return d, ok
}

// Authenticate verifies the Authorization bearer token and attaches the
// token subject as the actor. Requests without a valid token get 401.
func Authenticate(verifier *jwt.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r, verifier)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Guard returns middleware that runs the engine guard for operation.
//
// When verifier is non-nil the request is authenticated first; otherwise the
// actor must already be in the request context (for example from
// [Authenticate] further up the chain). args may be nil for operations whose
// arguments carry no resource ID.
func Guard(engine *boardguard.Engine, verifier *jwt.Verifier, operation string, args ArgsFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, boardguard.ErrEngineNotReady)
				return
			}

			ctx := r.Context()
			if verifier != nil {
				var err error
				if ctx, err = authenticate(r, verifier); err != nil {
					WriteError(w, err)
					return
				}
			}

			var in map[string]any
			if args != nil {
				var err error
				if in, err = args(r); err != nil {
					WriteError(w, err)
					return
				}
			}

			d, err := engine.Guard(ctx, operation, in)
			if err != nil {
				WriteError(w, err)
				return
			}

			ctx = context.WithValue(ctx, decisionContextKey{}, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, verifier *jwt.Verifier) (context.Context, error) {
	if verifier == nil {
		return nil, boardguard.ErrActorMissing
	}
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, boardguard.ErrActorMissing
	}
	claims, err := verifier.Verify(token)
	if err != nil {
		return nil, err
	}

	ctx := boardguard.WithActor(r.Context(), claims.ActorID())
	if ip := clientIP(r); ip != "" {
		ctx = boardguard.WithClientIP(ctx, ip)
	}
	return ctx, nil
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
