package common

import "fmt"

// Kind enumerates the abstract error kinds of spec §7. User-facing mutation
// responses surface Kind+Message only; Context is for internal logging.
type Kind string

const (
	KindInvalidInput          Kind = "InvalidInput"
	KindUnauthenticated       Kind = "Unauthenticated"
	KindForbidden             Kind = "Forbidden"
	KindNotFound              Kind = "NotFound"
	KindConflict              Kind = "Conflict"
	KindInsufficientFunds     Kind = "InsufficientFunds"
	KindCurrencyMismatch      Kind = "CurrencyMismatch"
	KindDuplicateOperation    Kind = "DuplicateOperation"
	KindDependencyUnavailable Kind = "DependencyUnavailable"
	KindTransientConflict     Kind = "TransientConflict"
	KindExpired               Kind = "Expired"
	KindRateLimited           Kind = "RateLimited"
	KindFatal                 Kind = "Fatal"
)

// Error is the structured payload of spec §7: {kind, message, context}.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds an *Error of the given kind with optional context pairs
// (key, value, key, value, ...).
func New(kind Kind, message string, kv ...any) *Error {
	ctx := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			ctx[key] = kv[i+1]
		}
	}
	return &Error{Kind: kind, Message: message, Context: ctx}
}

func NewInvalidInput(message string, kv ...any) error          { return New(KindInvalidInput, message, kv...) }
func NewUnauthenticated(message string, kv ...any) error        { return New(KindUnauthenticated, message, kv...) }
func NewForbidden(message string, kv ...any) error               { return New(KindForbidden, message, kv...) }
func NewNotFound(message string, kv ...any) error                { return New(KindNotFound, message, kv...) }
func NewConflict(message string, kv ...any) error                { return New(KindConflict, message, kv...) }
func NewInsufficientFunds(message string, kv ...any) error       { return New(KindInsufficientFunds, message, kv...) }
func NewCurrencyMismatch(message string, kv ...any) error        { return New(KindCurrencyMismatch, message, kv...) }
func NewDuplicateOperation(message string, kv ...any) error      { return New(KindDuplicateOperation, message, kv...) }
func NewDependencyUnavailable(message string, kv ...any) error   { return New(KindDependencyUnavailable, message, kv...) }
func NewTransientConflict(message string, kv ...any) error       { return New(KindTransientConflict, message, kv...) }
func NewExpired(message string, kv ...any) error                 { return New(KindExpired, message, kv...) }
func NewRateLimited(message string, kv ...any) error             { return New(KindRateLimited, message, kv...) }
func NewFatal(message string, kv ...any) error                   { return New(KindFatal, message, kv...) }

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

func IsNotFound(err error) bool              { return Is(err, KindNotFound) }
func IsForbidden(err error) bool             { return Is(err, KindForbidden) }
func IsUnauthenticated(err error) bool       { return Is(err, KindUnauthenticated) }
func IsInvalidInput(err error) bool          { return Is(err, KindInvalidInput) }
func IsConflict(err error) bool              { return Is(err, KindConflict) }
func IsInsufficientFunds(err error) bool     { return Is(err, KindInsufficientFunds) }
func IsCurrencyMismatch(err error) bool      { return Is(err, KindCurrencyMismatch) }
func IsDuplicateOperation(err error) bool    { return Is(err, KindDuplicateOperation) }
func IsDependencyUnavailable(err error) bool { return Is(err, KindDependencyUnavailable) }
func IsTransientConflict(err error) bool     { return Is(err, KindTransientConflict) }
func IsExpired(err error) bool               { return Is(err, KindExpired) }
func IsRateLimited(err error) bool           { return Is(err, KindRateLimited) }
