package repos

import "fmt"

// RepositoryNotFoundError is returned when the repository itself does not exist
// or is not visible to the credential.
type RepositoryNotFoundError struct {
	Owner string
	Repo  string
}

// Error implements the error interface.
func (e RepositoryNotFoundError) Error() string {
	return fmt.Sprintf("repository %s/%s not found", e.Owner, e.Repo)
}

// BuildNotFoundError is returned when no build record exists for an id.
type BuildNotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e BuildNotFoundError) Error() string {
	return fmt.Sprintf("build %q not found", e.ID)
}

// TransportError is any remote API failure other than not-found. The upstream
// message is kept verbatim and the underlying error stays reachable through
// errors.Unwrap.
type TransportError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream returned %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }
