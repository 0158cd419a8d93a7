package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/weft-ml/weft/internal/ir"
)

// LoweringError reports a failed rewrite, naming the operation so the
// message survives without the graph context.
type LoweringError struct {
	Op      string
	Message string
}

// Error implements the error interface.
func (e *LoweringError) Error() string {
	return fmt.Sprintf("lowering %s: %s", e.Op, e.Message)
}

func loweringErrorf(op ir.Symbol, format string, args ...any) *LoweringError {
	return &LoweringError{Op: string(op), Message: fmt.Sprintf(format, args...)}
}

// ValidationError aggregates every convention violation found in a
// lowered graph, together with the full dump for diagnosis.
type ValidationError struct {
	Problems []string
	Dump     string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("graph is not exportable:\n  %s\n\ngraph:\n%s",
		strings.Join(e.Problems, "\n  "), e.Dump)
}

// IsValidation reports whether err is a validation failure. Uses
// errors.As to handle wrapped errors.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
