package value

import (
	"math"
	"strings"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
)

// DefaultRank is the rank assigned to a DefaultTerm candidate; it only wins
// when no other candidate survives.
const DefaultRank = math.MaxInt32

// Value is a candidate binding for a Variable: the term itself, the
// location of the variable it was produced for, which variables it was
// derived from (for cascading invalidation), a rank, and a validity flag.
//
// Srcs is the transitive closure of the candidate Values this one was
// computed from, so that invalidating an upstream candidate (a failed
// unification tuple) kills every candidate derived from it, not just the
// variable it lives on. Worlds tags a candidate with the enumeration
// tuples it belongs to (enumeration id -> element index); argument tuples
// combining candidates from conflicting worlds are never formed.
type Value struct {
	Term    *ast.Node
	Loc     diag.Location
	Sources map[string]bool
	Rank    int
	Valid   bool

	Srcs   []*Value
	Worlds map[int]int
}

func NewValue(term *ast.Node, loc diag.Location, sources map[string]bool, rank int) *Value {
	return &Value{Term: term, Loc: loc, Sources: sources, Rank: rank, Valid: true}
}

// Alive reports whether this candidate and every candidate it was derived
// from are still valid. Srcs lists are stored pre-flattened, so one level of
// flag checks suffices.
func (v *Value) Alive() bool {
	if !v.Valid {
		return false
	}
	for _, s := range v.Srcs {
		if !s.Valid {
			return false
		}
	}
	return true
}

// Variable is owned by a Unifier for the duration of one unify() pass; it
// accumulates candidate Values for one Local or ArgVar declaration.
type Variable struct {
	Name      string
	Loc       diag.Location
	Decl      *ast.Node
	Deps      map[string]bool
	Score     int
	Values    []*Value
	IsUnify   bool
	IsUserVar bool

	// DroppedSources collects the source sets of Undefined candidates that
	// were never added to Values, so invalidation can still cascade through
	// them.
	DroppedSources map[string]bool

	seen map[string]*Value // Render(term) -> stored candidate, for dedup
}

func NewVariable(name string, loc diag.Location, decl *ast.Node) *Variable {
	return &Variable{
		Name:           name,
		Loc:            loc,
		Decl:           decl,
		Deps:           map[string]bool{},
		DroppedSources: map[string]bool{},
		IsUnify:        strings.HasPrefix(name, "unify$"),
		IsUserVar:      isUserVarName(name),
		seen:           map[string]*Value{},
	}
}

func isUserVarName(name string) bool {
	rest := strings.TrimPrefix(name, "$")
	return !strings.Contains(rest, "$")
}

// Reset clears value state so the variable can be rebuilt on a retry pass
// or a fresh call of its owning Unifier.
func (v *Variable) Reset() {
	v.Values = nil
	v.DroppedSources = map[string]bool{}
	v.seen = map[string]*Value{}
}

// Add merges one candidate into the variable's value collection. Undefined
// candidates are dropped (but their sources recorded). User-named variables
// deduplicate by rendered form; synthetic variables (unify$, temporaries,
// value$) keep every candidate so that two same-rendered terms derived
// from different enumeration tuples stay independently condemnable. Bind
// dedups at emission instead.
func (v *Variable) Add(val *Value) {
	if val.Term == nil || val.Term.Kind() == ast.KindUndefinedTerm {
		for s := range val.Sources {
			v.DroppedSources[s] = true
		}
		return
	}
	if !v.IsUserVar {
		v.Values = append(v.Values, val)
		return
	}
	key := Render(val.Term)
	if prev, ok := v.seen[key]; ok {
		// Same rendered term: keep the stored candidate, unless its source
		// chain has already been condemned and the newcomer's is intact, in
		// which case the newcomer takes over the stored identity so
		// downstream derivations survive with it.
		if !prev.Alive() && val.Alive() {
			*prev = *val
		}
		return
	}
	v.seen[key] = val
	v.Values = append(v.Values, val)
}

// FilterByRank keeps only the minimum-rank non-default candidates, falling
// back to the default candidates when none survive.
func FilterByRank(vals []*Value) []*Value {
	var nonDefault, defaults []*Value
	for _, v := range vals {
		if v.Rank == DefaultRank {
			defaults = append(defaults, v)
		} else {
			nonDefault = append(nonDefault, v)
		}
	}
	if len(nonDefault) == 0 {
		return defaults
	}
	min := nonDefault[0].Rank
	for _, v := range nonDefault[1:] {
		if v.Rank < min {
			min = v.Rank
		}
	}
	out := make([]*Value, 0, len(nonDefault))
	for _, v := range nonDefault {
		if v.Rank == min {
			out = append(out, v)
		}
	}
	return out
}

// MarkInvalidValues is the cascading-failure pass run after evaluation: a
// unify$ variable's candidate is invalid if any variable it was derived
// from currently has zero valid candidates.
func MarkInvalidValues(vars map[string]*Variable) {
	for _, v := range vars {
		if !v.IsUnify {
			continue
		}
		for _, val := range v.Values {
			val.Valid = supported(val.Sources, vars)
		}
	}
}

func supported(sources map[string]bool, vars map[string]*Variable) bool {
	for name := range sources {
		dep, ok := vars[name]
		if !ok {
			continue
		}
		if !hasValidCandidate(dep) {
			return false
		}
	}
	return true
}

func hasValidCandidate(v *Variable) bool {
	for _, val := range v.Values {
		if val.Valid {
			return true
		}
	}
	return false
}

// RemoveInvalidValues prunes every candidate marked invalid by a prior
// MarkInvalidValues call, or whose source chain was condemned during
// evaluation (Alive).
func RemoveInvalidValues(vars map[string]*Variable) {
	for _, v := range vars {
		kept := v.Values[:0]
		for _, val := range v.Values {
			if val.Alive() {
				kept = append(kept, val)
			}
		}
		v.Values = kept
	}
}

// BindVariables reports whether every unify$ variable in vars has at least
// one surviving candidate. A false result means the whole rule body failed.
func BindVariables(vars map[string]*Variable) bool {
	for _, v := range vars {
		if v.IsUnify && len(v.Values) == 0 {
			return false
		}
	}
	return true
}

// Bind emits this variable's result term: the single distinct candidate, a
// TermSet of several, or an Undefined term if none survived. Candidates
// that render identically (same value reached through different tuples)
// collapse here.
func (v *Variable) Bind() *ast.Node {
	var distinct []*ast.Node
	seen := map[string]bool{}
	for _, val := range v.Values {
		key := Render(val.Term)
		if seen[key] {
			continue
		}
		seen[key] = true
		distinct = append(distinct, val.Term)
	}
	switch len(distinct) {
	case 0:
		return ast.Leaf(ast.KindUndefinedTerm, v.Loc, nil)
	case 1:
		return distinct[0]
	default:
		ts := ast.Create(ast.KindTermSet, v.Loc)
		for _, term := range distinct {
			ts.PushBack(term)
		}
		return ts
	}
}
