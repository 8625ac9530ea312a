package errs

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Error kinds surfaced by the engine. Callers branch on them with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrInconsistentPolicy = errors.New("inconsistent policy")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrValidation, "validation"},
	{ErrPermissionDenied, "permission_denied"},
	{ErrNotFound, "not_found"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrInconsistentPolicy, "inconsistent_policy"},
}

func Validation(format string, args ...any) error {
	return kindf(ErrValidation, format, args...)
}

func PermissionDenied(format string, args ...any) error {
	return kindf(ErrPermissionDenied, format, args...)
}

func NotFound(format string, args ...any) error {
	return kindf(ErrNotFound, format, args...)
}

func InvalidTransition(format string, args ...any) error {
	return kindf(ErrInvalidTransition, format, args...)
}

func InconsistentPolicy(format string, args ...any) error {
	return kindf(ErrInconsistentPolicy, format, args...)
}

func kindf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// KindOf returns the kind name of err, or "internal" when it carries none.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}

// Wrap adds context and preserves the error chain (errors.Is/As works).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context and preserves the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	args = append(args, err)
	return fmt.Errorf(format+": %w", args...)
}

// WithStack captures a stack trace once, at the root cause boundary.
func WithStack(err error) error {
	if err == nil {
		return nil
	}

	var se *StackError
	if errors.As(err, &se) {
		return err
	}

	return &StackError{
		err:   err,
		stack: debug.Stack(),
	}
}

type StackError struct {
	err   error
	stack []byte
}

func (e *StackError) Error() string { return e.err.Error() }
func (e *StackError) Unwrap() error { return e.err }
func (e *StackError) Stack() []byte { return e.stack }

type loggable struct{ err error }

// Loggable encodes err as a structured slog group: message, kind, chain and stack when present.
// Usage: slog.Any("err", errs.Loggable(err))
func Loggable(err error) slog.LogValuer { return loggable{err: err} }

func (l loggable) LogValue() slog.Value {
	if l.err == nil {
		return slog.GroupValue()
	}

	attrs := []slog.Attr{
		slog.String("message", l.err.Error()),
		slog.String("kind", KindOf(l.err)),
		slog.Any("chain", ErrorChainStrings(l.err)),
	}

	var se *StackError
	if errors.As(l.err, &se) {
		attrs = append(attrs, slog.String("stack", string(se.Stack())))
	}

	return slog.GroupValue(attrs...)
}

// ErrorChainStrings returns the unwrap chain as strings (outer -> inner).
func ErrorChainStrings(err error) []string {
	if err == nil {
		return nil
	}

	out := make([]string, 0, 8)
	for e := err; e != nil; e = errors.Unwrap(e) {
		out = append(out, e.Error())
	}
	return out
}
