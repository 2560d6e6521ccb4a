// Package errors defines the error values returned across the cmaked daemon.
package errors

import stderr "errors"

// New returns an error that formats as the given text.
// Each call to New returns a distinct error value even if the text is identical.
func New(msg string) error {
	return stderr.New(msg)
}

var (
	// NoFolderArgumentError reports that a command required a folder argument and none was given.
	NoFolderArgumentError = New("folder argument is required")
	// InvalidArgumentError reports that a command argument had the wrong type.
	InvalidArgumentError = New("invalid command argument")
)

// IsBadRequest reports whether the error is a bad request from the caller.
func IsBadRequest(e error) bool {
	return stderr.Is(e, NoFolderArgumentError) || stderr.Is(e, InvalidArgumentError)
}
