package errors

import (
	stderr "errors"
	"fmt"
)

// Code is a stable numeric identifier for a dispatch failure, usable without parsing messages.
// Values sit in the JSON-RPC implementation-defined server error range.
type Code int32

const (
	CodeNoActiveFolder   Code = -32001
	CodeNoKitSelected    Code = -32002
	CodeFolderNotFound   Code = -32003
	CodeDuplicateFolder  Code = -32004
	CodeSessionBusy      Code = -32005
	CodeDriverFailure    Code = -32006
	CodeCacheOpenFailure Code = -32007
	CodeUnknownCommand   Code = -32008
)

// NoActiveFolderError indicates that a command targeted the active folder while none is set.
type NoActiveFolderError struct{}

// Error is an implementation of the error interface.
func (n *NoActiveFolderError) Error() string {
	return "no active folder"
}

// NoKitSelectedError indicates that the user declined to pick a kit for a folder.
type NoKitSelectedError struct {
	Folder string
}

// Error is an implementation of the error interface.
func (n *NoKitSelectedError) Error() string {
	return fmt.Sprintf("no kit selected for folder %q", n.Folder)
}

// DuplicateFolderError indicates that a folder is already open.
type DuplicateFolderError struct {
	Folder string
}

// Error is an implementation of the error interface.
func (n *DuplicateFolderError) Error() string {
	return fmt.Sprintf("folder %q is already open", n.Folder)
}

// SessionBusyError indicates that a folder already has a mutating operation in flight.
type SessionBusyError struct {
	Folder  string
	Pending string
}

// Error is an implementation of the error interface.
func (n *SessionBusyError) Error() string {
	return fmt.Sprintf("folder %q is busy running %s", n.Folder, n.Pending)
}

// DriverFailureError indicates that the build tool could not be run.
type DriverFailureError struct {
	Folder    string
	Operation string
	Err       error
}

// Error is an implementation of the error interface.
func (n *DriverFailureError) Error() string {
	return fmt.Sprintf("%s failed for folder %q: %v", n.Operation, n.Folder, n.Err)
}

// Unwrap returns the underlying cause.
func (n *DriverFailureError) Unwrap() error {
	return n.Err
}

// CacheOpenError indicates that the CMake cache of a build directory could not be read.
type CacheOpenError struct {
	Path string
	Err  error
}

// Error is an implementation of the error interface.
func (n *CacheOpenError) Error() string {
	return fmt.Sprintf("opening cache %q: %v", n.Path, n.Err)
}

// Unwrap returns the underlying cause.
func (n *CacheOpenError) Unwrap() error {
	return n.Err
}

// UnknownCommandError indicates that a command name is not registered.
type UnknownCommandError struct {
	Command string
}

// Error is an implementation of the error interface.
func (n *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", n.Command)
}

// IsSessionBusy reports whether a SessionBusyError is part of the error chain.
func IsSessionBusy(e error) bool {
	var busy *SessionBusyError
	return stderr.As(e, &busy)
}

// IsNoKitSelected reports whether a NoKitSelectedError is part of the error chain.
func IsNoKitSelected(e error) bool {
	var noKit *NoKitSelectedError
	return stderr.As(e, &noKit)
}

// ResultCode returns the stable code for a known dispatch failure.
func ResultCode(e error) (Code, bool) {
	var (
		noActive  *NoActiveFolderError
		noKit     *NoKitSelectedError
		notFound  *FolderNotFoundError
		duplicate *DuplicateFolderError
		busy      *SessionBusyError
		driver    *DriverFailureError
		cache     *CacheOpenError
		unknown   *UnknownCommandError
	)
	switch {
	case e == nil:
		return 0, false
	case stderr.As(e, &noActive):
		return CodeNoActiveFolder, true
	case stderr.As(e, &noKit):
		return CodeNoKitSelected, true
	case stderr.As(e, &notFound):
		return CodeFolderNotFound, true
	case stderr.As(e, &duplicate):
		return CodeDuplicateFolder, true
	case stderr.As(e, &busy):
		return CodeSessionBusy, true
	case stderr.As(e, &driver):
		return CodeDriverFailure, true
	case stderr.As(e, &cache):
		return CodeCacheOpenFailure, true
	case stderr.As(e, &unknown):
		return CodeUnknownCommand, true
	}
	return 0, false
}
