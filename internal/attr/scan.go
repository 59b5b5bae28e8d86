package attr

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
)

type option struct {
	key   string
	value string
}

type entry struct {
	name    string
	options []option
}

// dirScanner tokenizes directive arguments with Go's lexical rules.
type dirScanner struct {
	s   scanner.Scanner
	tok rune
	err error
}

func newScanner(src string) *dirScanner {
	d := &dirScanner{}
	d.s.Init(strings.NewReader(src))
	d.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanStrings | scanner.ScanRawStrings
	d.s.Error = func(_ *scanner.Scanner, msg string) {
		if d.err == nil {
			d.err = fmt.Errorf("%s", msg)
		}
	}
	d.next()
	return d
}

func (d *dirScanner) next() { d.tok = d.s.Scan() }

func (d *dirScanner) errorf(format string, args ...any) error {
	if d.err != nil {
		return d.err
	}
	return fmt.Errorf("col %d: %s", d.s.Position.Column, fmt.Sprintf(format, args...))
}

// path reads ident ('.' ident)*.
func (d *dirScanner) path() (string, error) {
	if d.tok != scanner.Ident {
		return "", d.errorf("expected identifier, found %s", scanner.TokenString(d.tok))
	}
	var sb strings.Builder
	sb.WriteString(d.s.TokenText())
	d.next()
	for d.tok == '.' {
		d.next()
		if d.tok != scanner.Ident {
			return "", d.errorf("expected identifier after '.', found %s", scanner.TokenString(d.tok))
		}
		sb.WriteByte('.')
		sb.WriteString(d.s.TokenText())
		d.next()
	}
	return sb.String(), nil
}

func (d *dirScanner) value() (string, error) {
	switch d.tok {
	case scanner.Ident:
		return d.path()
	case scanner.Int:
		v := d.s.TokenText()
		d.next()
		return v, nil
	case scanner.String, scanner.RawString:
		v, err := strconv.Unquote(d.s.TokenText())
		if err != nil {
			return "", d.errorf("bad string %s", d.s.TokenText())
		}
		d.next()
		return v, nil
	}
	return "", d.errorf("expected value, found %s", scanner.TokenString(d.tok))
}

// option reads key ['=' value]. A bare key is "true".
func (d *dirScanner) option() (option, error) {
	if d.tok != scanner.Ident {
		return option{}, d.errorf("expected option name, found %s", scanner.TokenString(d.tok))
	}
	key := d.s.TokenText()
	d.next()
	if d.tok != '=' {
		return option{key: key, value: "true"}, nil
	}
	d.next()
	v, err := d.value()
	if err != nil {
		return option{}, err
	}
	return option{key: key, value: v}, nil
}

// options reads a list of options up to EOF, or up to ')' when nested.
func (d *dirScanner) options(nested bool) ([]option, error) {
	var out []option
	for {
		if d.err != nil {
			return nil, d.err
		}
		switch {
		case d.tok == scanner.EOF && !nested:
			return out, nil
		case d.tok == scanner.EOF:
			return nil, d.errorf("missing ')'")
		case d.tok == ')' && nested:
			d.next()
			return out, nil
		case d.tok == ',':
			d.next()
			continue
		}
		o, err := d.option()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
}

// modules reads path ['(' options ')'] entries, optionally comma separated.
func (d *dirScanner) modules() ([]entry, error) {
	var out []entry
	for {
		if d.err != nil {
			return nil, d.err
		}
		switch d.tok {
		case scanner.EOF:
			return out, nil
		case ',':
			d.next()
			continue
		}
		name, err := d.path()
		if err != nil {
			return nil, err
		}
		e := entry{name: name}
		if d.tok == '(' {
			d.next()
			if e.options, err = d.options(true); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
}
