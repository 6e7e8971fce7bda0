package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
)

// AnnotatedError includes more context than a plain error that is useful for troubleshooting.
type AnnotatedError struct {
	// msg is the error message.
	msg string
	// pc is the program counter for the location of the error provided by runtime.Callers.
	pc uintptr
	// attrs are slog attributes that are added to the log event to provide more context for the error.
	attrs []slog.Attr
}

// New creates a new AnnotatedError with the given message and attributes.
func New(msg string, attrs ...slog.Attr) AnnotatedError {
	var pcs [1]uintptr
	// Skip runtime.Callers and this function.
	runtime.Callers(2, pcs[:]) //nolint:mnd // see above
	return AnnotatedError{
		msg:   msg,
		pc:    pcs[0],
		attrs: attrs,
	}
}

// NewSentinel creates a plain error without other context that can be used as sentinel error that can be detected
// with errors.Is.
func NewSentinel(msg string) error {
	return errors.New(msg)
}

// Wrap annotates err with msg, the caller's source location, and attrs.
//
// The resulting error message is "msg: err" and the original error stays reachable with Is and As.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	var pcs [1]uintptr
	runtime.Callers(2, pcs[:]) //nolint:mnd // skip runtime.Callers and Wrap
	return fmt.Errorf("%w: %w", AnnotatedError{msg: msg, pc: pcs[0], attrs: attrs}, err)
}

// Wrap is a convenience function for wrapping errors, e.g., adding context to a sentinel error.
func (err AnnotatedError) Wrap(wrapped error) error {
	return fmt.Errorf("%w: %w", err, wrapped)
}

// Error implements error interface.
func (err AnnotatedError) Error() string {
	return err.msg
}

func (err AnnotatedError) source() string {
	frames := runtime.CallersFrames([]uintptr{err.pc})
	frame, _ := frames.Next()
	return fmt.Sprintf("%s:%d", frame.File, frame.Line)
}

// LogValue formats the error for useful logging.
func (err AnnotatedError) LogValue() slog.Value {
	// Retrieve the source location of the error so that developers can locate it faster.
	attrs := append(
		[]slog.Attr{slog.String("source", err.source())},
		err.attrs...,
	)

	return slog.GroupValue(attrs...)
}

// SlogError returns an attribute that logs err under the "error" key together with the source locations and
// attributes of every AnnotatedError in its chain.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	args := []any{slog.String("message", err.Error())}
	var trace []string
	walk(err, func(e error) {
		var annotated AnnotatedError
		var ok bool
		if annotated, ok = e.(AnnotatedError); !ok {
			return
		}
		trace = append(trace, annotated.source())
		for _, attr := range annotated.attrs {
			args = append(args, attr)
		}
	})
	if len(trace) > 0 {
		args = append(args, slog.Any("trace", trace))
	}
	return slog.Group("error", args...)
}

// walk visits err and every error it wraps, depth first.
func walk(err error, visit func(error)) {
	if err == nil {
		return
	}
	visit(err)
	switch x := err.(type) { //nolint:errorlint // we are implementing the unwrapping here.
	case interface{ Unwrap() error }:
		walk(x.Unwrap(), visit)
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			walk(e, visit)
		}
	}
}

// As exposes stdlib errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is exposes stdlib errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap exposes stdlib errors.Unwrap.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Join exposes stdlib errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
