package varrule

import (
	"fmt"
	"regexp"

	"github.com/google/cel-go/cel"
)

// Matcher decides whether extraction rules apply to a node, from its name
// and label. Both patterns must match, anchored at the start of the value.
// An optional CEL expression over `name` and `label` must also hold.
type Matcher struct {
	namePattern  string
	labelPattern string
	expression   string

	name    *regexp.Regexp
	label   *regexp.Regexp
	program cel.Program
}

type matcherConfig struct {
	expression string
}

// MatcherOption configures a Matcher.
type MatcherOption func(*matcherConfig)

// WithExpression adds a CEL predicate, e.g. `label == "ANSIBLE_HOST" &&
// name.endsWith(".db")`. The expression sees the string variables name and
// label and must evaluate to a bool.
func WithExpression(expr string) MatcherOption {
	return func(c *matcherConfig) {
		c.expression = expr
	}
}

// NewMatcher compiles a matcher. Patterns use RE2 syntax.
func NewMatcher(namePattern, labelPattern string, opts ...MatcherOption) (*Matcher, error) {
	cfg := &matcherConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	nameRe, err := compileAnchored(namePattern)
	if err != nil {
		return nil, fmt.Errorf("%w: name pattern %q: %v", ErrInvalidPattern, namePattern, err)
	}
	labelRe, err := compileAnchored(labelPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: label pattern %q: %v", ErrInvalidPattern, labelPattern, err)
	}

	m := &Matcher{
		namePattern:  namePattern,
		labelPattern: labelPattern,
		expression:   cfg.expression,
		name:         nameRe,
		label:        labelRe,
	}

	if cfg.expression != "" {
		prg, err := compileExpression(cfg.expression)
		if err != nil {
			return nil, err
		}
		m.program = prg
	}

	return m, nil
}

// MustMatcher is NewMatcher for patterns known to be valid. It panics on error.
func MustMatcher(namePattern, labelPattern string, opts ...MatcherOption) *Matcher {
	m, err := NewMatcher(namePattern, labelPattern, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Match reports whether the matcher applies to a node.
func (m *Matcher) Match(name, label string) (bool, error) {
	if !m.name.MatchString(name) || !m.label.MatchString(label) {
		return false, nil
	}
	if m.program == nil {
		return true, nil
	}

	out, _, err := m.program.Eval(map[string]any{
		"name":  name,
		"label": label,
	})
	if err != nil {
		return false, fmt.Errorf("evaluating %q for %s:%s: %w", m.expression, label, name, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q returned %T", ErrInvalidExpression, m.expression, out.Value())
	}
	return b, nil
}

// Key identifies matchers with the same patterns and expression.
func (m *Matcher) Key() string {
	return fmt.Sprintf("%q %q %q", m.namePattern, m.labelPattern, m.expression)
}

// String implements fmt.Stringer.
func (m *Matcher) String() string {
	if m.expression == "" {
		return fmt.Sprintf("name=~%s label=~%s", m.namePattern, m.labelPattern)
	}
	return fmt.Sprintf("name=~%s label=~%s when %s", m.namePattern, m.labelPattern, m.expression)
}

func compileAnchored(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)`)
}

func compileExpression(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("label", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: %q has type %s, want bool", ErrInvalidExpression, expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expr, err)
	}
	return prg, nil
}
