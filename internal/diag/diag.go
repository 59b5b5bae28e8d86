// Package diag collects the diagnostics of a generation run.
//
// Two failure patterns are distinguished:
//
//   - Structural: the declaration is not what the directive expects (an interface,
//     a struct, a parsable body). Transformation of that one declaration stops.
//   - Configuration: the declaration parsed fine but the composition is invalid
//     (missing default, missing extension). The emitter keeps going and embeds a
//     build-failing sentinel at the exact binding, so sibling declarations are
//     still checked in the same run.
//
// Warnings never fail a run.
package diag

import (
	"fmt"
	"go/token"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// Kind classifies a diagnostic.
type Kind int

const (
	Structural Kind = iota + 1
	Configuration
	Warning
)

func (k Kind) String() string {
	switch k {
	case Structural:
		return "structural"
	case Configuration:
		return "configuration"
	case Warning:
		return "warning"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Diagnostic is a single located message.
type Diagnostic struct {
	Pos     token.Position
	Kind    Kind
	Subject string // offending interface or declaration
	Message string
	// Example is the literal corrected syntax for configuration errors.
	Example string
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	var sb strings.Builder
	if d.Pos.IsValid() {
		sb.WriteString(d.Pos.String())
		sb.WriteString(": ")
	}
	sb.WriteString(d.Kind.String())
	sb.WriteString(": ")
	sb.WriteString(d.Message)
	return sb.String()
}

// IsError reports whether d fails the run.
func (d Diagnostic) IsError() bool { return d.Kind != Warning }

// List is an ordered set of diagnostics.
type List []Diagnostic

// Add appends d.
func (l *List) Add(d Diagnostic) { *l = append(*l, d) }

// Append appends every diagnostic of other.
func (l *List) Append(other List) { *l = append(*l, other...) }

// Structural records a structural error about subject.
func (l *List) Structural(pos token.Position, subject, format string, args ...any) {
	l.Add(Diagnostic{Pos: pos, Kind: Structural, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// Warn records a warning about subject.
func (l *List) Warn(pos token.Position, subject, format string, args ...any) {
	l.Add(Diagnostic{Pos: pos, Kind: Warning, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any diagnostic is an error.
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.IsError() {
			return true
		}
	}
	return false
}

// Errors returns only the error diagnostics.
func (l List) Errors() List {
	var out List
	for _, d := range l {
		if d.IsError() {
			out = append(out, d)
		}
	}
	return out
}

// Sort orders l by file, line, column. Ties keep insertion order.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		a, b := l[i].Pos, l[j].Pos
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// Err returns nil when l holds no errors, otherwise an *Error.
func (l List) Err() error {
	errs := l.Errors()
	if len(errs) == 0 {
		return nil
	}
	return &Error{List: errs}
}

// Log writes every diagnostic to logger.
func (l List) Log(logger *slog.Logger) {
	for _, d := range l {
		attrs := []any{"kind", d.Kind.String(), "subject", d.Subject}
		if d.Pos.IsValid() {
			attrs = append(attrs, "pos", d.Pos.String())
		}
		if d.Example != "" {
			attrs = append(attrs, "example", d.Example)
		}
		if d.IsError() {
			logger.Error(d.Message, attrs...)
		} else {
			logger.Warn(d.Message, attrs...)
		}
	}
}

// Error is the aggregate error of a list.
type Error struct{ List List }

// Error implements the error interface.
func (e *Error) Error() string {
	switch len(e.List) {
	case 0:
		return "contractgen: no errors"
	case 1:
		return e.List[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(e.List[0].Error())
	fmt.Fprintf(&sb, " (and %d more errors)", len(e.List)-1)
	return sb.String()
}

// Unwrap exposes the individual diagnostics to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, len(e.List))
	for i, d := range e.List {
		out[i] = d
	}
	return out
}
