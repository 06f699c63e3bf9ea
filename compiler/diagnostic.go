package compiler

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ---------------------------------------------------------------------------
// Diagnostics: errors and warnings reported before execution
// ---------------------------------------------------------------------------

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "Warning"
	}
	return "Error"
}

// Diagnostic is one problem found while parsing, resolving or compiling.
type Diagnostic struct {
	Severity Severity
	Span     Span
	Where    string // " at 'x'", " at end" or empty
	Message  string
}

// Line returns the 1-based line of the diagnostic.
func (d Diagnostic) Line() int { return d.Span.Start.Line }

// Error formats the diagnostic as "[line N] Error at 'x': message".
func (d Diagnostic) Error() string {
	return fmt.Sprintf("[line %d] %s%s: %s", d.Line(), d.Severity, d.Where, d.Message)
}

// CompileError is returned when source could not be turned into something
// runnable. It carries every diagnostic gathered, warnings included.
type CompileError struct {
	Diagnostics []Diagnostic
	merr        *multierror.Error
}

func newCompileError(diags []Diagnostic) *CompileError {
	var merr *multierror.Error
	for _, d := range diags {
		if d.Severity == SeverityError {
			merr = multierror.Append(merr, d)
		}
	}
	merr.ErrorFormat = formatDiagnostics
	return &CompileError{Diagnostics: diags, merr: merr}
}

func (e *CompileError) Error() string {
	return e.merr.Error()
}

// Unwrap exposes the aggregated diagnostics to errors.As.
func (e *CompileError) Unwrap() error {
	return e.merr
}

// Errors returns only the error-severity diagnostics.
func (e *CompileError) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range e.Diagnostics {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

func formatDiagnostics(errs []error) string {
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = err.Error()
	}
	return strings.Join(lines, "\n")
}

// ---------------------------------------------------------------------------
// Reporter
// ---------------------------------------------------------------------------

// Reporter accumulates diagnostics. The parser, the resolver and the
// bytecode compiler all report through one.
type Reporter struct {
	diags  []Diagnostic
	errors int
}

// ErrorAt records an error located at tok.
func (r *Reporter) ErrorAt(tok Token, message string) {
	r.add(SeverityError, tok, message)
	r.errors++
}

// WarnAt records a warning located at tok.
func (r *Reporter) WarnAt(tok Token, message string) {
	r.add(SeverityWarning, tok, message)
}

func (r *Reporter) add(sev Severity, tok Token, message string) {
	r.diags = append(r.diags, Diagnostic{
		Severity: sev,
		Span:     tokenSpan(tok),
		Where:    where(tok),
		Message:  message,
	})
}

func where(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return " at end"
	case TokenError:
		return ""
	}
	return fmt.Sprintf(" at '%s'", tok.Lexeme)
}

// HadError reports whether any error-severity diagnostic was recorded.
func (r *Reporter) HadError() bool { return r.errors > 0 }

// Diagnostics returns everything recorded so far.
func (r *Reporter) Diagnostics() []Diagnostic { return r.diags }

// Err returns a *CompileError when an error was recorded, nil otherwise.
// Warnings alone never fail compilation.
func (r *Reporter) Err() error {
	if !r.HadError() {
		return nil
	}
	return newCompileError(r.diags)
}
