// Package apperr defines the error taxonomy shared across Othala commands.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/starford/othala/internal/models"
)

var (
	// ErrNotFound marks a lookup that matched no component.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous marks a lookup that matched more than one component.
	ErrAmbiguous = errors.New("ambiguous")
	// ErrConflict marks an install whose target already exists (no force).
	ErrConflict = errors.New("conflict")
	// ErrStructural marks a registry file that exists but cannot be parsed
	// as the expected schema. Always fatal; the registry is authoritative.
	ErrStructural = errors.New("structural")
	// ErrRemote marks a failed paste-service call.
	ErrRemote = errors.New("remote")
)

// NotFoundError reports a resolver miss together with the attempted
// name and filters so the message can name what was searched for.
type NotFoundError struct {
	Name   string
	Type   string
	Domain string
}

func (e *NotFoundError) Error() string {
	var filters []string
	if e.Type != "" {
		filters = append(filters, "type="+e.Type)
	}
	if e.Domain != "" {
		filters = append(filters, "domain="+e.Domain)
	}
	if len(filters) == 0 {
		return fmt.Sprintf("component %q not found", e.Name)
	}
	return fmt.Sprintf("component %q not found (%s)", e.Name, strings.Join(filters, ", "))
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AmbiguousError carries every candidate so the caller can present
// disambiguation options instead of guessing.
type AmbiguousError struct {
	Name       string
	Candidates []*models.ComponentRecord
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("component %q is ambiguous: %d candidates (narrow with a type or domain filter)",
		e.Name, len(e.Candidates))
}

// Is lets errors.Is(err, ErrAmbiguous) match.
func (e *AmbiguousError) Is(target error) bool { return target == ErrAmbiguous }

// ConflictError reports an install target that already exists.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("target already exists: %s (pass force to overwrite)", e.Path)
}

// Is lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// RemoteError reports a paste-service failure with enough context to name
// the operation and HTTP status in user-facing messages.
type RemoteError struct {
	Op     string // "create", "update", "fetch"
	Status int    // HTTP status, 0 for transport errors
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %s failed: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

// Is lets errors.Is(err, ErrRemote) match.
func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// Unwrap exposes the underlying cause.
func (e *RemoteError) Unwrap() error { return e.Err }

// StructuralError reports an unparseable registry file.
type StructuralError struct {
	Path string
	Err  error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("registry %s is structurally invalid: %v", e.Path, e.Err)
}

// Is lets errors.Is(err, ErrStructural) match.
func (e *StructuralError) Is(target error) bool { return target == ErrStructural }

// Unwrap exposes the underlying cause.
func (e *StructuralError) Unwrap() error { return e.Err }
