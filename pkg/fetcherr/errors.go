// Package fetcherr holds the error types surfaced by the fetcher. Transient
// failures (timeouts, 429s, 5xx) are consumed by the retry layer and never
// reach callers; everything in this package is terminal.
package fetcherr

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxBodyChars bounds how much of a response body is retained on errors.
const MaxBodyChars = 1000

// UserError marks invalid caller input. It is raised before any wire call
// whenever possible and is never retried.
type UserError struct {
	msg string
}

func User(msg string) *UserError {
	return &UserError{msg: msg}
}

func Userf(format string, args ...any) *UserError {
	return &UserError{msg: fmt.Sprintf(format, args...)}
}

func (e *UserError) Error() string { return e.msg }

var (
	// ErrProjectNotProvided is raised when neither the caller nor the
	// environment supplies a project identifier.
	ErrProjectNotProvided = User("project not provided: pass a project or set NEPTUNE_PROJECT")

	// ErrAPITokenNotProvided is raised when no api token can be found.
	ErrAPITokenNotProvided = User("api token not provided: set NEPTUNE_API_TOKEN")
)

// InvalidCredentialsError is raised when the backend rejects the api token
// with a 401. It short-circuits the retry loop.
type InvalidCredentialsError struct {
	Endpoint string
}

func (e *InvalidCredentialsError) Error() string {
	if e.Endpoint == "" {
		return "invalid credentials: the api token was rejected"
	}
	return fmt.Sprintf("invalid credentials: the api token was rejected by %s", e.Endpoint)
}

// ProjectInaccessibleError is raised when the backend reports ACCESS_DENIED
// for the requested project.
type ProjectInaccessibleError struct {
	Project string
}

func (e *ProjectInaccessibleError) Error() string {
	return fmt.Sprintf("project %q cannot be accessed: it does not exist or the api token has no permission to it", e.Project)
}

// UnexpectedResponseError is raised when the backend answers with a
// non-retryable, non-success status or a body that cannot be decoded.
type UnexpectedResponseError struct {
	StatusCode int
	Body       string
}

func (e *UnexpectedResponseError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("unexpected response from the backend: %s", e.Body)
	}
	return fmt.Sprintf("unexpected response from the backend: status %d, body %q", e.StatusCode, e.Body)
}

// RetryError is the terminal outcome of an exhausted retry budget. It keeps
// enough of the last exchange to diagnose what the backend kept answering.
type RetryError struct {
	Attempts   int
	Elapsed    time.Duration
	LastStatus int
	LastBody   string
	LastErr    error
}

func (e *RetryError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "retry budget exhausted after %d attempts in %.1fs", e.Attempts, e.Elapsed.Seconds())
	if e.LastStatus != 0 {
		fmt.Fprintf(&sb, ": last status %d", e.LastStatus)
	}
	if e.LastBody != "" {
		fmt.Fprintf(&sb, ", body %q", e.LastBody)
	}
	if e.LastErr != nil {
		fmt.Fprintf(&sb, ": %s", e.LastErr)
	}
	return sb.String()
}

func (e *RetryError) Unwrap() error { return e.LastErr }

// ConflictingAttributeTypesError is raised during result assembly when the
// same attribute name arrives with more than one type and nothing in the
// query pins which one was meant.
type ConflictingAttributeTypesError struct {
	Name  string
	Types []string
}

func (e *ConflictingAttributeTypesError) Error() string {
	return fmt.Sprintf("attribute %q has conflicting types: %s; narrow the query with a typed attribute reference or enable type suffixes",
		e.Name, strings.Join(e.Types, ", "))
}

// InferenceFailure names one attribute whose type could not be resolved and
// why.
type InferenceFailure struct {
	Name   string
	Reason string
}

// AttributeTypeInferenceError is raised after inference has attempted every
// candidate. It lists all failing attributes, not just the first.
type AttributeTypeInferenceError struct {
	Failures []InferenceFailure
}

func (e *AttributeTypeInferenceError) Error() string {
	var sb strings.Builder
	sb.WriteString("failed to infer attribute types:")
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, "\n  %s: %s", f.Name, f.Reason)
	}
	return sb.String()
}

// TruncateBody renders a response body for inclusion in error messages. The
// body is decoded as UTF-8 with invalid bytes replaced and cut to
// MaxBodyChars characters.
func TruncateBody(body []byte) string {
	s := strings.ToValidUTF8(string(body), string(utf8.RuneError))
	runes := []rune(s)
	if len(runes) <= MaxBodyChars {
		return s
	}
	return string(runes[:MaxBodyChars])
}
