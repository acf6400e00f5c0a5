package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/MrEthical07/boardguard"
)

// ArgsFunc collects the guard arguments of a request.
type ArgsFunc func(*http.Request) (map[string]any, error)

const maxJSONArgsBytes = 1 << 20

// PathArgs reads the named path wildcards registered on http.ServeMux.
func PathArgs(names ...string) ArgsFunc {
	return func(r *http.Request) (map[string]any, error) {
		args := make(map[string]any, len(names))
		for _, name := range names {
			if v := r.PathValue(name); v != "" {
				args[name] = v
			}
		}
		return args, nil
	}
}

// QueryArgs reads the named query parameters.
func QueryArgs(names ...string) ArgsFunc {
	return func(r *http.Request) (map[string]any, error) {
		q := r.URL.Query()
		args := make(map[string]any, len(names))
		for _, name := range names {
			if v := q.Get(name); v != "" {
				args[name] = v
			}
		}
		return args, nil
	}
}

// JSONArgs decodes a JSON object body into the argument map. The body is
// restored so the handler can decode it again. Nested objects are kept, so
// operations may look their resource argument up at any depth.
func JSONArgs() ArgsFunc {
	return func(r *http.Request) (map[string]any, error) {
		if r.Body == nil || r.Body == http.NoBody {
			return map[string]any{}, nil
		}
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxJSONArgsBytes+1))
		_ = r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", boardguard.ErrInvalidInput, err)
		}
		if len(raw) > maxJSONArgsBytes {
			return nil, fmt.Errorf("%w: body too large", boardguard.ErrInvalidInput)
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))

		args := map[string]any{}
		if len(bytes.TrimSpace(raw)) == 0 {
			return args, nil
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", boardguard.ErrInvalidInput, err)
		}
		return args, nil
	}
}

// MergeArgs runs each source in order; later sources win on key collisions.
func MergeArgs(sources ...ArgsFunc) ArgsFunc {
	return func(r *http.Request) (map[string]any, error) {
		merged := map[string]any{}
		for _, src := range sources {
			args, err := src(r)
			if err != nil {
				return nil, err
			}
			for k, v := range args {
				merged[k] = v
			}
		}
		return merged, nil
	}
}
