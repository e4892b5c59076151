// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// matchTimeout bounds a single pattern evaluation. Console lines are short,
// so hitting it means the pattern is pathological.
const matchTimeout = time.Second

// Pattern is a regular expression that is matched against console output.
//
// Patterns use .NET style syntax, so look-behind assertions like
// `(?<![Ll]ast )[Ll]ogin:` are supported. A pattern matches if it matches
// anywhere in the text.
type Pattern struct {
	expr string
	re   *regexp2.Regexp
}

// NewPattern compiles the given expression into a [Pattern].
func NewPattern(expr string) (*Pattern, error) {
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", expr, err)
	}

	re.MatchTimeout = matchTimeout

	return &Pattern{expr: expr, re: re}, nil
}

// MustPattern is like [NewPattern] but panics if the expression does not
// compile.
func MustPattern(expr string) *Pattern {
	p, err := NewPattern(expr)
	if err != nil {
		panic(err)
	}

	return p
}

// String implements [fmt.Stringer].
func (p *Pattern) String() string {
	return p.expr
}

// Match reports whether the pattern matches the text.
func (p *Pattern) Match(text string) (bool, error) {
	ok, err := p.re.MatchString(text)
	if err != nil {
		return false, fmt.Errorf("match pattern %q: %w", p.expr, err)
	}

	return ok, nil
}

// matchFirst returns the index of the first pattern that matches the text or
// -1 if none does.
func matchFirst(patterns []*Pattern, text string) (int, error) {
	for idx, pattern := range patterns {
		ok, err := pattern.Match(text)
		if err != nil {
			return -1, err
		}

		if ok {
			return idx, nil
		}
	}

	return -1, nil
}
