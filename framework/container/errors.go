package container

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure returned by the container is a *ResolutionError
// whose Kind is one of these, so errors.Is(err, ErrCyclicResolution) works.
var (
	ErrNotFound         = errors.New("service not found")
	ErrAccessViolation  = errors.New("service is not public")
	ErrCyclicResolution = errors.New("cyclic resolution")
	ErrInvalidReference = errors.New("invalid reference")
	ErrConstruction     = errors.New("construction failed")
	ErrCall             = errors.New("call failed")
	ErrArgumentResolver = errors.New("argument resolution failed")
)

// ResolutionError reports a failed resolution together with the debug path
// ("label = serviceId" from the root request down to the failing node).
type ResolutionError struct {
	Kind      error
	ServiceID string
	Step      string
	Path      []string
	Err       error
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	b.WriteString("container: ")
	b.WriteString(e.Kind.Error())
	if e.ServiceID != "" {
		fmt.Fprintf(&b, " [%s]", e.ServiceID)
	}
	if e.Step != "" {
		fmt.Fprintf(&b, " (%s)", e.Step)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " [path: %s]", strings.Join(e.Path, " -> "))
	}
	return b.String()
}

func (e *ResolutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, r *Resolution, step string, err error) *ResolutionError {
	e := &ResolutionError{Kind: kind, Step: step, Err: err}
	if r != nil {
		e.ServiceID = r.ServiceID()
		e.Path = r.Path()
	}
	return e
}

func newErrorf(kind error, r *Resolution, step, format string, args ...any) *ResolutionError {
	return newError(kind, r, step, fmt.Errorf(format, args...))
}

// asResolutionError passes container errors through untouched and wraps
// anything else with kind.
func asResolutionError(err error, kind error, r *Resolution, step string) error {
	var re *ResolutionError
	if errors.As(err, &re) {
		return err
	}
	return newError(kind, r, step, err)
}
