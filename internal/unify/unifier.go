package unify

import (
	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
	"github.com/ashgrove/regowalk/internal/resolve"
	"github.com/ashgrove/regowalk/internal/value"
)

// Unifier evaluates one KindUnifyBody: it schedules its statements by
// dependency score, runs R+1 passes to let cyclic dependencies converge,
// then marks and prunes invalid candidates.
type Unifier struct {
	ctx     *Context
	body    *ast.Node
	vars    map[string]*value.Variable
	stmts   []*ast.Node
	order   []int
	retries int
	seeds   []seed
}

type seed struct {
	name string
	term *ast.Node
	loc  diag.Location
}

// Build constructs a Unifier over body, computing its statement schedule.
// It does not evaluate anything; call Run to do that.
func Build(ctx *Context, body *ast.Node) *Unifier {
	u := &Unifier{ctx: ctx, body: body, vars: map[string]*value.Variable{}}
	for _, s := range body.Children() {
		u.stmts = append(u.stmts, s)
		for _, name := range targetNames(s) {
			decl := s
			if s.Kind() != ast.KindLocal {
				decl = nil
			}
			u.getVar(name, s.Loc(), decl)
		}
	}
	u.order, u.retries = u.schedule()
	return u
}

// Reset clears every variable's accumulated candidates and recorded seeds
// so a cached Unifier can be reused for a fresh call with different closure
// bindings.
func (u *Unifier) Reset() {
	for _, v := range u.vars {
		v.Reset()
	}
	u.seeds = nil
}

// resetPass clears value collections between retry passes and replays the
// injected seeds, so cyclic bodies rebuild from the same starting
// bindings.
func (u *Unifier) resetPass() {
	for _, v := range u.vars {
		v.Reset()
	}
	for _, s := range u.seeds {
		v := u.getVar(s.name, s.loc, nil)
		v.Add(value.NewValue(s.term, s.loc, map[string]bool{}, 0))
	}
}

func (u *Unifier) getVar(name string, loc diag.Location, decl *ast.Node) *value.Variable {
	if v, ok := u.vars[name]; ok {
		if decl != nil && v.Decl == nil {
			v.Decl = decl
		}
		return v
	}
	v := value.NewVariable(name, loc, decl)
	u.vars[name] = v
	return v
}

// Var exposes a variable's accumulated state to callers (e.g. rule
// evaluation reading a rule's "value$" result after Run).
func (u *Unifier) Var(name string) (*value.Variable, bool) {
	v, ok := u.vars[name]
	return v, ok
}

// Seed injects a starting candidate for name, used to bind loop and
// argument variables before running a body. Seeds are recorded so retry
// passes can replay them.
func (u *Unifier) Seed(name string, term *ast.Node, loc diag.Location) {
	u.seeds = append(u.seeds, seed{name: name, term: term, loc: loc})
	v := u.getVar(name, loc, nil)
	v.Add(value.NewValue(term, loc, map[string]bool{}, 0))
}

// targetNames returns every variable a statement writes to.
func targetNames(s *ast.Node) []string {
	switch s.Kind() {
	case ast.KindLocal, ast.KindUnifyExpr, ast.KindUnifyExprWith, ast.KindUnifyExprCompr:
		if s.NumChildren() == 0 {
			return nil
		}
		if n, ok := s.Child(0).Lit.(string); ok {
			return []string{n}
		}
	case ast.KindUnifyExprEnum:
		var out []string
		if s.NumChildren() > 0 {
			if n, ok := s.Child(0).Lit.(string); ok {
				out = append(out, n)
			}
		}
		if s.NumChildren() > 1 {
			if n, ok := s.Child(1).Lit.(string); ok {
				out = append(out, n)
			}
		}
		return out
	case ast.KindUnifyExprEvery:
		if s.NumChildren() == 0 {
			return nil
		}
		if n, ok := s.Child(0).Lit.(string); ok {
			return []string{n}
		}
	}
	return nil
}

// freeVars collects the names of every Var leaf reachable under n that
// names a variable this Unifier owns.
func (u *Unifier) freeVars(n *ast.Node, out map[string]bool) {
	if n == nil {
		return
	}
	if n.Kind() == ast.KindVar {
		if name, ok := n.Lit.(string); ok {
			if _, known := u.vars[name]; known {
				out[name] = true
			}
		}
		return
	}
	for _, c := range n.Children() {
		u.freeVars(c, out)
	}
}

func (u *Unifier) depsOf(s *ast.Node) map[string]bool {
	out := map[string]bool{}
	switch s.Kind() {
	case ast.KindLocal:
		// no RHS
	case ast.KindUnifyExpr:
		if s.NumChildren() > 1 {
			u.freeVars(s.Child(1), out)
		}
	case ast.KindUnifyExprWith, ast.KindUnifyExprCompr:
		for _, c := range s.Children() {
			u.freeVars(c, out)
		}
	case ast.KindUnifyExprEnum:
		if s.NumChildren() > 2 {
			u.freeVars(s.Child(2), out)
		}
	case ast.KindUnifyExprEvery:
		if s.NumChildren() > 3 {
			u.freeVars(s.Child(3), out)
		}
	}
	return out
}

// schedule computes a dependency-ascending statement order and the number
// of retry passes needed for cyclic dependencies (one extra pass per
// back-edge).
func (u *Unifier) schedule() ([]int, int) {
	stmtsByTarget := map[string][]int{}
	for i, s := range u.stmts {
		for _, name := range targetNames(s) {
			stmtsByTarget[name] = append(stmtsByTarget[name], i)
		}
	}

	memo := map[string]int{}
	visiting := map[string]bool{}
	cycles := 0

	var scoreVar func(name string) int
	scoreVar = func(name string) int {
		if v, ok := memo[name]; ok {
			return v
		}
		if visiting[name] {
			cycles++
			return 0
		}
		visiting[name] = true
		total := 0
		for _, si := range stmtsByTarget[name] {
			for dep := range u.depsOf(u.stmts[si]) {
				total += scoreVar(dep)
			}
			total++
		}
		delete(visiting, name)
		memo[name] = total
		return total
	}

	scores := make([]int, len(u.stmts))
	for i, s := range u.stmts {
		if names := targetNames(s); len(names) > 0 {
			scores[i] = scoreVar(names[0])
			continue
		}
		total := 1
		for dep := range u.depsOf(s) {
			total += scoreVar(dep)
		}
		scores[i] = total
	}

	order := make([]int, len(u.stmts))
	for i := range order {
		order[i] = i
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && scores[order[j]] < scores[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	return order, cycles
}

// Run evaluates every statement in schedule order for retries+1 passes,
// then prunes candidates invalidated by upstream failures.
func (u *Unifier) Run() error {
	passes := u.retries + 1
	for p := 0; p < passes; p++ {
		if p > 0 {
			u.resetPass()
		}
		for _, idx := range u.order {
			if err := u.evalStmt(u.stmts[idx]); err != nil {
				return err
			}
		}
	}
	value.MarkInvalidValues(u.vars)
	value.RemoveInvalidValues(u.vars)
	return nil
}

// Succeeded reports whether every condition variable bound.
func (u *Unifier) Succeeded() bool { return value.BindVariables(u.vars) }

func (u *Unifier) evalStmt(s *ast.Node) error {
	switch s.Kind() {
	case ast.KindLocal:
		return nil
	case ast.KindUnifyExpr:
		return u.evalUnifyExpr(s)
	case ast.KindUnifyExprEnum:
		return u.evalEnum(s)
	case ast.KindUnifyExprEvery:
		return u.evalEvery(s)
	case ast.KindUnifyExprWith:
		return u.evalWith(s)
	case ast.KindUnifyExprCompr:
		return u.evalCompr(s)
	default:
		return nil
	}
}

func (u *Unifier) evalUnifyExpr(s *ast.Node) error {
	name, _ := s.Child(0).Lit.(string)
	target := u.getVar(name, s.Loc(), nil)
	if s.NumChildren() < 2 {
		return nil
	}
	cands, err := u.evalExpr(s.Child(1))
	if err != nil {
		return err
	}
	if target.IsUnify {
		// A synthetic condition variable: truthy tuples bind it, and any
		// source candidate that produced only falsy/undefined tuples is
		// condemned so derived values die with it.
		supported := map[*value.Value]bool{}
		var condemned []*value.Value
		for _, c := range cands {
			if value.IsTruthy(c.term) {
				target.Add(c.value(s.Loc()))
				for _, sv := range c.srcs {
					supported[sv] = true
				}
				continue
			}
			for n := range c.sources {
				target.DroppedSources[n] = true
			}
			condemned = append(condemned, c.srcs...)
		}
		for _, sv := range condemned {
			if !supported[sv] {
				sv.Valid = false
			}
		}
		return nil
	}
	for _, c := range cands {
		target.Add(c.value(s.Loc()))
	}
	return nil
}

type candidate struct {
	term    *ast.Node
	sources map[string]bool
	srcs    []*value.Value
	worlds  map[int]int
}

func (c candidate) value(loc diag.Location) *value.Value {
	v := value.NewValue(c.term, loc, c.sources, value.DefaultRank-1)
	v.Srcs = c.srcs
	v.Worlds = c.worlds
	return v
}

// evalExpr resolves node to its candidate terms: a Var yields its owning
// variable's current values, a literal yields itself, a Function yields the
// cartesian product of its arguments' candidates run through evalFunction.
func (u *Unifier) evalExpr(n *ast.Node) ([]candidate, error) {
	switch n.Kind() {
	case ast.KindVar:
		name, _ := n.Lit.(string)
		if override, ok := u.ctx.ResolveWith(name); ok {
			return []candidate{{term: override, sources: map[string]bool{}}}, nil
		}
		if v, ok := u.vars[name]; ok {
			out := make([]candidate, 0, len(v.Values))
			for _, val := range v.Values {
				out = append(out, candidate{
					term:    val.Term,
					sources: map[string]bool{name: true},
					srcs:    append([]*value.Value{val}, val.Srcs...),
					worlds:  val.Worlds,
				})
			}
			return out, nil
		}
		switch name {
		case "input":
			return []candidate{{term: u.ctx.Input, sources: map[string]bool{}}}, nil
		case "data":
			return []candidate{{term: u.ctx.Data, sources: map[string]bool{}}}, nil
		}
		return nil, nil
	case ast.KindFunction:
		name, _ := n.Lit.(string)
		return u.evalFunctionCandidates(name, n.Children(), n.Loc())
	default:
		return []candidate{{term: n, sources: map[string]bool{}}}, nil
	}
}

func (u *Unifier) evalFunctionCandidates(name string, argNodes []*ast.Node, loc diag.Location) ([]candidate, error) {
	argCands := make([][]candidate, len(argNodes))
	for i, a := range argNodes {
		c, err := u.evalExpr(a)
		if err != nil {
			return nil, err
		}
		argCands[i] = c
	}
	var out []candidate
	var rec func(i int, chosen []*ast.Node, sources map[string]bool, srcs []*value.Value, worlds map[int]int) error
	rec = func(i int, chosen []*ast.Node, sources map[string]bool, srcs []*value.Value, worlds map[int]int) error {
		if i == len(argCands) {
			term, err := u.evalFunction(name, chosen, loc)
			if err != nil {
				return err
			}
			out = append(out, candidate{term: term, sources: sources, srcs: srcs, worlds: worlds})
			return nil
		}
		for _, c := range argCands[i] {
			merged, ok := mergeWorlds(worlds, c.worlds)
			if !ok {
				// Candidates from conflicting enumeration tuples never form
				// an argument tuple.
				continue
			}
			next := map[string]bool{}
			for k := range sources {
				next[k] = true
			}
			for k := range c.sources {
				next[k] = true
			}
			nextSrcs := append(append([]*value.Value(nil), srcs...), c.srcs...)
			if err := rec(i+1, append(chosen, c.term), next, nextSrcs, merged); err != nil {
				return err
			}
		}
		return nil
	}
	if err := rec(0, nil, map[string]bool{}, nil, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// mergeWorlds combines two enumeration-world tags, failing when they place
// the same enumeration at different element indices.
func mergeWorlds(a, b map[int]int) (map[int]int, bool) {
	if len(b) == 0 {
		return a, true
	}
	if len(a) == 0 {
		return b, true
	}
	out := make(map[int]int, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if prev, ok := out[k]; ok && prev != v {
			return nil, false
		}
		out[k] = v
	}
	return out, true
}

// evalFunction dispatches by name: arithmetic/bool/set infix operators,
// negation, apply_access, then the builtin registry, then rule calls
// through ctx.CallRuleFunc.
func (u *Unifier) evalFunction(name string, args []*ast.Node, loc diag.Location) (*ast.Node, error) {
	switch name {
	case "+", "-", "*", "/", "%":
		if name == "-" && len(args) == 2 && args[0].Kind() == ast.KindSet && args[1].Kind() == ast.KindSet {
			return resolve.BinInfix(name, args[0], args[1], loc)
		}
		return resolve.ArithInfix(name, args[0], args[1], loc)
	case "==", "!=", "<", "<=", ">", ">=":
		return resolve.BoolInfix(name, args[0], args[1], loc), nil
	case "&", "|":
		return resolve.BinInfix(name, args[0], args[1], loc)
	case "not":
		if value.IsTruthy(args[0]) {
			return ast.Leaf(ast.KindJSONFalse, loc, false), nil
		}
		return ast.Leaf(ast.KindJSONTrue, loc, true), nil
	case "$apply_access":
		return resolve.ApplyAccess(args[0], args[1], loc)
	case "array":
		return resolve.MakeArray(loc, args), nil
	case "set":
		return resolve.MakeSet(loc, args), nil
	case "object":
		keys := make([]*ast.Node, 0, len(args)/2)
		vals := make([]*ast.Node, 0, len(args)/2)
		for i := 0; i+1 < len(args); i += 2 {
			keys = append(keys, args[i])
			vals = append(vals, args[i+1])
		}
		return resolve.MakeObject(loc, keys, vals)
	}
	if fn, ok := u.ctx.Builtins[name]; ok {
		return fn(args, loc)
	}
	if u.ctx.CallRuleFunc != nil {
		return u.ctx.CallRuleFunc(name, args, loc)
	}
	return nil, &resolve.EvalError{Loc: loc, Msg: "unknown function " + name}
}

// evalEnum implements container enumeration: each container element adds
// one key candidate and one value candidate tagged with the same enumeration
// world, so any later statement consuming both only ever sees matched
// (key[i], value[i]) pairs, never cross products.
func (u *Unifier) evalEnum(s *ast.Node) error {
	keyName, _ := s.Child(0).Lit.(string)
	valName, _ := s.Child(1).Lit.(string)
	containerName, _ := s.Child(2).Lit.(string)
	keyVar := u.getVar(keyName, s.Loc(), nil)
	valVar := u.getVar(valName, s.Loc(), nil)
	containerVar, ok := u.vars[containerName]
	if !ok {
		return nil
	}
	for _, cv := range containerVar.Values {
		container := cv.Term
		sources := map[string]bool{containerName: true}
		srcs := append([]*value.Value{cv}, cv.Srcs...)
		id := u.ctx.NextEnumID()
		add := func(i int, target *value.Variable, term *ast.Node) {
			worlds, _ := mergeWorlds(cv.Worlds, map[int]int{id: i})
			v := value.NewValue(term, s.Loc(), sources, value.DefaultRank-1)
			v.Srcs = srcs
			v.Worlds = worlds
			target.Add(v)
		}
		switch container.Kind() {
		case ast.KindArray:
			for i, elem := range container.Children() {
				add(i, keyVar, ast.Leaf(ast.KindScalar, s.Loc(), int64(i)))
				add(i, valVar, elem)
			}
		case ast.KindObject:
			for i, item := range container.Children() {
				add(i, keyVar, item.Child(0))
				add(i, valVar, item.Child(1))
			}
		case ast.KindSet, ast.KindTermSet:
			for i, elem := range container.Children() {
				add(i, keyVar, elem)
				add(i, valVar, elem)
			}
		}
	}
	return nil
}

// evalEvery implements Rego's "every" quantifier: the target variable binds
// JSONTrue only if the nested body succeeds for every element of the
// container, vacuously true for an empty container. Unlike evalEnum's
// candidate streams, this needs a fresh nested Unifier run per element so
// each run's success is checked on its own before the target is bound.
func (u *Unifier) evalEvery(s *ast.Node) error {
	name, _ := s.Child(0).Lit.(string)
	target := u.getVar(name, s.Loc(), nil)
	keyName, _ := s.Child(1).Lit.(string)
	valName, _ := s.Child(2).Lit.(string)
	containerName, _ := s.Child(3).Lit.(string)
	nested := s.Child(4)

	containerVar, ok := u.vars[containerName]
	if !ok {
		target.Add(value.NewValue(ast.Leaf(ast.KindJSONTrue, s.Loc(), true), s.Loc(), map[string]bool{}, value.DefaultRank-1))
		return nil
	}
	for _, cv := range containerVar.Values {
		container := cv.Term
		var keys, vals []*ast.Node
		switch container.Kind() {
		case ast.KindArray:
			for i, elem := range container.Children() {
				keys = append(keys, ast.Leaf(ast.KindScalar, s.Loc(), int64(i)))
				vals = append(vals, elem)
			}
		case ast.KindObject:
			for _, item := range container.Children() {
				keys = append(keys, item.Child(0))
				vals = append(vals, item.Child(1))
			}
		case ast.KindSet, ast.KindTermSet:
			for _, elem := range container.Children() {
				keys = append(keys, elem)
				vals = append(vals, elem)
			}
		}
		allHeld := true
		for i := range vals {
			sub := Build(u.ctx, nested)
			u.importOuter(sub)
			if keyName != "" {
				sub.Seed(keyName, keys[i], s.Loc())
			}
			sub.Seed(valName, vals[i], s.Loc())
			if err := sub.Run(); err != nil {
				return err
			}
			if !sub.Succeeded() {
				allHeld = false
				break
			}
		}
		if allHeld {
			target.Add(value.NewValue(ast.Leaf(ast.KindJSONTrue, s.Loc(), true), s.Loc(), map[string]bool{}, value.DefaultRank-1))
		}
	}
	return nil
}

// evalWith runs its nested body under a temporary with-stack override
// frame, then binds this statement's target variable to true when the
// nested body succeeds.
func (u *Unifier) evalWith(s *ast.Node) error {
	name, _ := s.Child(0).Lit.(string)
	target := u.getVar(name, s.Loc(), nil)
	nested := s.Child(1)
	overrides := map[string]*ast.Node{}
	for _, wa := range s.Children()[2:] {
		path, ok := wa.Child(0).Lit.(string)
		if !ok {
			continue
		}
		cands, err := u.evalExpr(wa.Child(1))
		if err != nil {
			return err
		}
		if len(cands) > 0 {
			overrides[path] = cands[0].term
		}
	}
	u.ctx.PushWith(overrides)
	defer u.ctx.PopWith()

	sub := Build(u.ctx, nested)
	u.importOuter(sub)
	if err := sub.Run(); err != nil {
		return err
	}
	if sub.Succeeded() {
		target.Add(value.NewValue(ast.Leaf(ast.KindJSONTrue, s.Loc(), true), s.Loc(), map[string]bool{}, value.DefaultRank-1))
	}
	return nil
}

// importOuter seeds a nested Unifier's free (non-declared) variables from
// this Unifier's current candidates, giving comprehension and with-clause
// bodies access to their enclosing scope. Each import is a fresh Value: a
// condition failing inside the nested body must not condemn the enclosing
// body's candidate.
func (u *Unifier) importOuter(nested *Unifier) {
	for name, nv := range nested.vars {
		if nv.Decl != nil {
			continue
		}
		outer, ok := u.vars[name]
		if !ok {
			continue
		}
		for _, val := range outer.Values {
			nested.Seed(name, val.Term, val.Loc)
		}
	}
}

// evalCompr implements array/set/object comprehensions by running the
// nested body to a fixpoint and collecting its value-expression variable's
// candidates.
func (u *Unifier) evalCompr(s *ast.Node) error {
	name, _ := s.Child(0).Lit.(string)
	target := u.getVar(name, s.Loc(), nil)
	kind, _ := s.Lit.(string)

	var keyExprName, valExprName string
	var nested *ast.Node
	if kind == "object" {
		keyExprName, _ = s.Child(1).Lit.(string)
		valExprName, _ = s.Child(2).Lit.(string)
		nested = s.Child(3)
	} else {
		valExprName, _ = s.Child(1).Lit.(string)
		nested = s.Child(2)
	}

	sub := Build(u.ctx, nested)
	u.importOuter(sub)
	if err := sub.Run(); err != nil {
		return err
	}
	if !sub.Succeeded() {
		// A comprehension whose body never holds is the empty collection,
		// not Undefined.
		target.Add(value.NewValue(emptyCollection(kind, s.Loc()), s.Loc(), map[string]bool{}, value.DefaultRank-1))
		return nil
	}

	valVar, ok := sub.vars[valExprName]
	if !ok {
		return nil
	}
	var result *ast.Node
	switch kind {
	case "set":
		elems := make([]*ast.Node, 0, len(valVar.Values))
		for _, val := range valVar.Values {
			elems = append(elems, val.Term)
		}
		result = resolve.MakeSet(s.Loc(), elems)
	case "object":
		keyVar, ok := sub.vars[keyExprName]
		if !ok {
			return nil
		}
		n := len(valVar.Values)
		if len(keyVar.Values) < n {
			n = len(keyVar.Values)
		}
		keys := make([]*ast.Node, 0, n)
		vals := make([]*ast.Node, 0, n)
		for i := 0; i < n; i++ {
			keys = append(keys, keyVar.Values[i].Term)
			vals = append(vals, valVar.Values[i].Term)
		}
		obj, err := resolve.MakeObject(s.Loc(), keys, vals)
		if err != nil {
			return err
		}
		result = obj
	default: // array
		elems := make([]*ast.Node, 0, len(valVar.Values))
		for _, val := range valVar.Values {
			elems = append(elems, val.Term)
		}
		result = resolve.MakeArray(s.Loc(), elems)
	}
	target.Add(value.NewValue(result, s.Loc(), map[string]bool{}, value.DefaultRank-1))
	return nil
}

func emptyCollection(kind string, loc diag.Location) *ast.Node {
	switch kind {
	case "set":
		return ast.Create(ast.KindSet, loc)
	case "object":
		return ast.Create(ast.KindObject, loc)
	default:
		return ast.Create(ast.KindArray, loc)
	}
}
