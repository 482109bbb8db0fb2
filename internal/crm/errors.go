package crm

import (
	"errors"
	"fmt"
)

// ErrNotFound signals a lookup that matched no record. It is not a failure;
// callers decide whether an absent record gates behavior.
var ErrNotFound = errors.New("record not found")

// AuthError means a token could not be issued. The previously cached token,
// if any, remains untouched.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("azure ad token request failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// RemoteError carries a non-2xx Dataverse response.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("dataverse returned %d: %s", e.Status, e.Body)
}
