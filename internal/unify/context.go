// Package unify is the Unifier: per-rule-body dependency analysis,
// statement scheduling, cycle-retry evaluation, builtin dispatch, and rule
// resolution (RuleComp/RuleFunc/RuleSet/RuleObj/DefaultRule) with
// recursion detection.
package unify

import (
	"fmt"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/builtin"
	"github.com/ashgrove/regowalk/internal/diag"
)

// Context is the state threaded explicitly through one top-level query's
// evaluation: the call stack, with-stack, and unifier cache. Passing it
// explicitly keeps the evaluator free of shared mutable globals.
type Context struct {
	Builtins builtin.Registry
	Data     *ast.Node // merged Data root, an Object
	Input    *ast.Node // Input root, or an Undefined term if never set

	// CallRuleFunc resolves a call to a name that is neither an operator nor
	// a registered builtin, i.e. a user rule call. Populated by internal/query,
	// which alone knows the module tree; left nil, such calls error.
	CallRuleFunc func(name string, args []*ast.Node, loc diag.Location) (*ast.Node, error)

	callStack []string
	withStack []map[string]*ast.Node

	cache  map[*ast.Node]*Unifier
	enumID int
}

// NextEnumID allocates a fresh enumeration-world id; every container a
// UnifyExprEnum statement iterates gets its own so (key, value) candidate
// pairs stay correlated across statements.
func (c *Context) NextEnumID() int {
	c.enumID++
	return c.enumID
}

func NewContext(builtins builtin.Registry, data, input *ast.Node) *Context {
	return &Context{
		Builtins: builtins,
		Data:     data,
		Input:    input,
		cache:    map[*ast.Node]*Unifier{},
	}
}

// RecursionError is returned by PushRule when a rule transitively calls
// itself.
type RecursionError struct {
	Name string
	Loc  diag.Location
}

func (e *RecursionError) Error() string {
	return diag.Snippet(diag.CategoryEval, e.Loc, fmt.Sprintf("Recursion detected: rule %q calls itself", e.Name))
}

// PushRule records that rule name at loc is now being evaluated; it fails
// if the same name at the same location is already on the stack, so
// same-named rules of different packages do not collide.
func (c *Context) PushRule(name string, loc diag.Location) error {
	key := fmt.Sprintf("%s@%p:%d-%d", name, loc.Src, loc.Start, loc.End)
	for _, n := range c.callStack {
		if n == key {
			return &RecursionError{Name: name, Loc: loc}
		}
	}
	c.callStack = append(c.callStack, key)
	return nil
}

func (c *Context) PopRule() {
	if len(c.callStack) > 0 {
		c.callStack = c.callStack[:len(c.callStack)-1]
	}
}

// PushWith installs a new override frame for the duration of a LiteralWith
// body; innermost frame wins on lookup.
func (c *Context) PushWith(overrides map[string]*ast.Node) {
	c.withStack = append(c.withStack, overrides)
}

func (c *Context) PopWith() {
	if len(c.withStack) > 0 {
		c.withStack = c.withStack[:len(c.withStack)-1]
	}
}

// ResolveWith looks up path against the with-stack, innermost first.
func (c *Context) ResolveWith(path string) (*ast.Node, bool) {
	for i := len(c.withStack) - 1; i >= 0; i-- {
		if v, ok := c.withStack[i][path]; ok {
			return v, true
		}
	}
	return nil, false
}

// UnifierFor returns the cached Unifier for this body node, constructing and
// caching one on first use.
func (c *Context) UnifierFor(body *ast.Node) *Unifier {
	if u, ok := c.cache[body]; ok {
		u.Reset()
		return u
	}
	u := Build(c, body)
	c.cache[body] = u
	return u
}
