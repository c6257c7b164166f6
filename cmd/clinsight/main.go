package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess       = 0 // Processing succeeded
	ExitSessionFailed = 1 // One or more sessions failed processing
	ExitError         = 2 // Configuration or runtime error
)

// SessionFailureError indicates that the pipeline ran to completion but one
// or more sessions ended in the failed status.
type SessionFailureError struct {
	Message string
}

func (e *SessionFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var sessionErr *SessionFailureError
		if errors.As(err, &sessionErr) {
			os.Exit(ExitSessionFailed)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
