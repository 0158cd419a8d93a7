package script

import "fmt"

// ErrorReport is a positioned front-end error: a message plus the
// offending source line with a tilde underline.
type ErrorReport struct {
	Range   SourceRange
	Message string
}

// Error implements the error interface.
func (e *ErrorReport) Error() string {
	return e.Message + ":\n" + e.Range.Highlight()
}

func errorAt(r SourceRange, format string, args ...any) *ErrorReport {
	return &ErrorReport{Range: r, Message: fmt.Sprintf(format, args...)}
}
