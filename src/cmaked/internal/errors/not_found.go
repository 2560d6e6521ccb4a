package errors

import (
	stderr "errors"
	"fmt"

	"github.com/gofrs/uuid"
)

// UUIDNotFoundError is a service domain error for not found.
type UUIDNotFoundError struct {
	UUID uuid.UUID
}

// Error is an implementation of the error interface.
func (n *UUIDNotFoundError) Error() string {
	return fmt.Sprintf("UUID %q not found", n.UUID)
}

// NotFoundUUID returns an UUID and true if UUIDNotFoundError is part of the
// error chain.
func NotFoundUUID(e error) (_ uuid.UUID, ok bool) {
	var nf *UUIDNotFoundError
	if !stderr.As(e, &nf) {
		return uuid.Nil, false
	}
	return nf.UUID, true
}

// NoClientFoundError indicates that a client connection cannot be found within the context.
type NoClientFoundError struct{}

// Error is an implementation of the error interface.
func (n *NoClientFoundError) Error() string {
	return "no client found in context"
}

// FolderNotFoundError indicates that a folder is not open in the workspace.
type FolderNotFoundError struct {
	Folder string
}

// Error is an implementation of the error interface.
func (n *FolderNotFoundError) Error() string {
	return fmt.Sprintf("folder %q is not open", n.Folder)
}

// NotFoundFolder returns the folder and true if FolderNotFoundError is part of the error chain.
func NotFoundFolder(e error) (_ string, ok bool) {
	var nf *FolderNotFoundError
	if !stderr.As(e, &nf) {
		return "", false
	}
	return nf.Folder, true
}
