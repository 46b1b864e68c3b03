package provider

import "fmt"

// UnregisteredError reports a lookup for a name no constructor was
// registered under. This is a caller error, not a transient condition.
type UnregisteredError struct {
	Name string
	Kind Kind
}

func (e *UnregisteredError) Error() string {
	return fmt.Sprintf("%s provider %q is not registered", e.Kind, e.Name)
}

// UnavailableError reports a registered provider that failed its health
// check after the full retry budget. Transient; the caller may retry.
type UnavailableError struct {
	Name string
	Kind Kind
	Err  error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s provider %q is unavailable: %v", e.Kind, e.Name, e.Err)
	}
	return fmt.Sprintf("%s provider %q is unavailable", e.Kind, e.Name)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
