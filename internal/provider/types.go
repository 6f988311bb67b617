package provider

import (
	"context"
	"errors"
	"fmt"
)

// Kind names a supported provider variant. The set is closed: every
// variant resolves its own base URL and endpoint precedence.
type Kind string

const (
	KindOpenAI           Kind = "openai"
	KindOpenAICompatible Kind = "openai_compatible"
)

// ParseKind normalizes a provider name. "compatible" is accepted as
// an alias for openai_compatible.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "", "openai":
		return KindOpenAI, nil
	case "openai_compatible", "compatible":
		return KindOpenAICompatible, nil
	default:
		return "", fmt.Errorf("unsupported provider: %s", name)
	}
}

// KindOf is the lenient form of ParseKind for configuration layering:
// unknown names are carried through unchanged and rejected later, when
// a client is actually built.
func KindOf(name string) Kind {
	kind, err := ParseKind(name)
	if err != nil {
		return Kind(name)
	}
	return kind
}

// Profile is an immutable named provider configuration.
type Profile struct {
	Name     string `json:"name"`
	Provider Kind   `json:"provider"`
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
}

// Options carry the per-run translation parameters shared by every
// batch call.
type Options struct {
	SourceLang     string
	TargetLang     string
	Domain         string
	Temperature    float64
	TimeoutSeconds int
}

// Client sends one batch of texts to a provider and returns the
// translated texts in the same order. A call is atomic: it either
// yields one output per input or an error.
type Client interface {
	TranslateBatch(ctx context.Context, texts []string) ([]string, error)
	Profile() Profile
}

// ErrorClass separates failures the retry policy may recover from
// (timeouts, 5xx, 429, connection resets, malformed replies) from
// those it must not (auth and validation rejections).
type ErrorClass int

const (
	Transient ErrorClass = iota
	Permanent
)

func (c ErrorClass) String() string {
	if c == Permanent {
		return "permanent"
	}
	return "transient"
}

// Error is a classified provider failure.
type Error struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider error (%s, status %d): %s", e.Class, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newTransient(message string, cause error) *Error {
	return &Error{Class: Transient, Message: message, Cause: cause}
}

func newPermanent(message string, cause error) *Error {
	return &Error{Class: Permanent, Message: message, Cause: cause}
}

// classifyStatus maps an HTTP status to an error class. 429 is rate
// pressure, not a terminal rejection.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return Transient
	case status >= 500:
		return Transient
	case status >= 400:
		return Permanent
	default:
		return Transient
	}
}

// IsTransient reports whether err should be retried. Unclassified
// errors are treated as transient so network-level failures without
// an HTTP status get a retry budget.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Class == Transient
	}
	return true
}

// IsPermanent reports whether err is a classified permanent failure.
func IsPermanent(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Class == Permanent
	}
	return false
}
