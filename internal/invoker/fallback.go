package invoker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrProviderUnavailable matches any error returned after every candidate
// model failed.
var ErrProviderUnavailable = errors.New("provider unavailable")

// Attempt records one failed model call.
type Attempt struct {
	Model string
	Err   error
}

// UnavailableError is returned when no candidate model produced output.
// It matches ErrProviderUnavailable and unwraps to the last underlying error.
type UnavailableError struct {
	Attempts []Attempt
}

func (e *UnavailableError) Error() string {
	if len(e.Attempts) == 0 {
		return "provider unavailable: no models configured"
	}
	models := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		models[i] = a.Model
	}
	return fmt.Sprintf("provider unavailable: all models failed (%s), last error: %v",
		strings.Join(models, ", "), e.Unwrap())
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrProviderUnavailable
}

func (e *UnavailableError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// TryInOrder calls fn for each candidate in order and returns the first
// success together with the model that produced it. Duplicate candidates are
// tried once. If ctx is done the loop stops and ctx.Err() is returned.
func TryInOrder[T any](ctx context.Context, candidates []string, fn func(ctx context.Context, model string) (T, error)) (T, string, error) {
	var zero T
	var attempts []Attempt
	seen := make(map[string]struct{}, len(candidates))

	for _, model := range candidates {
		if _, dup := seen[model]; dup {
			continue
		}
		seen[model] = struct{}{}

		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		out, err := fn(ctx, model)
		if err == nil {
			return out, model, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, "", ctxErr
		}

		attempts = append(attempts, Attempt{Model: model, Err: err})
		slog.Warn("model call failed, trying next", "model", model, "attempt", len(attempts), "error", err)
	}

	return zero, "", &UnavailableError{Attempts: attempts}
}
