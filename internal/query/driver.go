// Package query is the query driver: it sorts modules by
// package name, merges the data documents, assembles the root
// Top → Rego(Query, Input, DataSeq, ModuleSeq) tree, runs the lowering
// pipeline with debug dumps, checks the lowered tree once against the
// normal-form schema (when enabled), and finally unifies the root query body, emitting Binding and Term children
// under a Query node.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/builtin"
	"github.com/ashgrove/regowalk/internal/debugdump"
	"github.com/ashgrove/regowalk/internal/diag"
	"github.com/ashgrove/regowalk/internal/lower"
	"github.com/ashgrove/regowalk/internal/resolve"
	"github.com/ashgrove/regowalk/internal/surface"
	"github.com/ashgrove/regowalk/internal/unify"
	"github.com/ashgrove/regowalk/internal/wf"
)

// Driver holds the inputs of one evaluation. A Driver is single-use per
// query call as far as shared state goes (the unify.Context it creates is
// discarded at the end), but its module/data trees may serve several
// sequential queries.
type Driver struct {
	Modules  []*ast.Node // parsed surface modules (internal/surface.ParseModule)
	DataDocs []*ast.Node
	Input    *ast.Node // nil when no input document was supplied
	WFChecks bool
	Dump     *debugdump.Dumper
	Log      *zap.Logger
	Builtins builtin.Registry
}

func New() *Driver {
	return &Driver{
		WFChecks: true,
		Log:      zap.NewNop(),
		Builtins: builtin.Standard(),
	}
}

// ruleIndex resolves call names to lowered rule definitions.
type ruleIndex struct {
	byPath    map[string][]*ast.Node // "pkg.rule" -> definitions
	bare      map[string][]*ast.Node // rule -> definitions of the winning package
	bareOwner map[string]string
}

func newRuleIndex() *ruleIndex {
	return &ruleIndex{
		byPath:    map[string][]*ast.Node{},
		bare:      map[string][]*ast.Node{},
		bareOwner: map[string]string{},
	}
}

func (ix *ruleIndex) add(pkg string, rule *ast.Node) {
	name, _ := rule.Child(0).Lit.(string)
	if name == "" {
		return
	}
	ix.byPath[pkg+"."+name] = append(ix.byPath[pkg+"."+name], rule)
	if owner, ok := ix.bareOwner[name]; ok && owner != pkg {
		return // first package in sort order keeps the bare name
	}
	ix.bareOwner[name] = pkg
	ix.bare[name] = append(ix.bare[name], rule)
}

func moduleName(mod *ast.Node) string {
	name, _ := mod.Child(0).Child(0).Lit.(string)
	return name
}

// Run evaluates one query expression against the driver's modules and
// documents, returning a Query node whose children are Binding nodes for
// user-named variables, bare Terms for anonymous expressions, or a single
// Error node when evaluation failed.
func (d *Driver) Run(queryText string) (*ast.Node, error) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	runID := uuid.NewString()
	passes := lower.Pipeline()

	mods := append([]*ast.Node(nil), d.Modules...)
	sort.SliceStable(mods, func(i, j int) bool { return moduleName(mods[i]) < moduleName(mods[j]) })

	qsrc := &diag.Source{Name: "query", Text: queryText}
	expr, err := surface.ParseQuery(qsrc)
	if err != nil {
		return nil, err
	}

	if d.Dump != nil {
		raw := ast.Create(ast.KindModuleSeq, diag.Location{})
		for _, m := range mods {
			raw.PushBack(m.Clone())
		}
		if err := d.Dump.Dump(1, passes[0].Name, raw); err != nil {
			return nil, err
		}
	}

	moduleSeq := ast.Create(ast.KindModuleSeq, diag.Location{})
	ix := newRuleIndex()
	for _, m := range mods {
		lowered := lower.LowerModule(m)
		moduleSeq.PushBack(lowered)
		pkg := moduleName(lowered)
		for _, rule := range lowered.Child(2).Children() {
			ix.add(pkg, rule)
		}
	}
	log.Debug("modules lowered",
		zap.String("run_id", runID),
		zap.Int("modules", len(mods)),
		zap.Int("rules", len(ix.byPath)))

	data := mergeData(d.DataDocs)
	input := d.Input
	if input == nil {
		input = ast.Leaf(ast.KindUndefinedTerm, diag.Location{}, nil)
	}

	q := lower.LowerQuery(expr)

	queryNode := ast.Create(ast.KindQuery, expr.Loc())
	queryNode.PushBack(q.Body)
	inputNode := ast.Create(ast.KindInput, diag.Location{})
	inputNode.PushBack(input)
	dataSeq := ast.Create(ast.KindDataSeq, diag.Location{})
	dataSeq.PushBack(data)
	rego := ast.Create(ast.KindRego, diag.Location{})
	rego.PushBack(queryNode)
	rego.PushBack(inputNode)
	rego.PushBack(dataSeq)
	rego.PushBack(moduleSeq)
	top := ast.Create(ast.KindTop, diag.Location{})
	top.PushBack(rego)

	if d.Dump != nil {
		if err := d.Dump.Dump(2, passes[1].Name, moduleSeq); err != nil {
			return nil, err
		}
		if err := d.Dump.Dump(3, passes[2].Name, q.Body); err != nil {
			return nil, err
		}
	}

	var staticErrs []*ast.Node
	top.Errors(&staticErrs)
	if len(staticErrs) > 0 {
		msg, _ := staticErrs[0].Lit.(string)
		return nil, diag.New(diag.CategoryStatic, staticErrs[0].Loc(), "%s", msg)
	}

	if d.WFChecks {
		if viols := wf.Check(top, lower.NormalFormSchema()); len(viols) > 0 {
			return nil, fmt.Errorf("lowered tree is not well formed: %s", viols[0].Error())
		}
	}

	ctx := unify.NewContext(d.Builtins, data, input)
	ev := unify.NewEvaluator(ctx)
	ctx.CallRuleFunc = func(name string, args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		return d.callRule(ctx, ev, ix, name, args, loc)
	}

	result := ast.Create(ast.KindQuery, expr.Loc())
	u := unify.Build(ctx, q.Body)
	if err := u.Run(); err != nil {
		log.Debug("query evaluation failed", zap.String("run_id", runID), zap.Error(err))
		result.PushBack(ast.Leaf(ast.KindError, expr.Loc(), err.Error()))
		if d.Dump != nil {
			if err := d.Dump.Dump(4, passes[3].Name, result); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	emitResults(u, q, result, expr.Loc())
	log.Debug("query evaluated",
		zap.String("run_id", runID),
		zap.Int("results", result.NumChildren()))
	if d.Dump != nil {
		if err := d.Dump.Dump(4, passes[3].Name, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// emitResults converts the run Unifier's surviving candidates into the
// Query node's Binding/Term children. A query that bound nothing at all
// collapses to the body's JSONFalse verdict (a failed body binds JSONFalse).
func emitResults(u *unify.Unifier, q *lower.Query, result *ast.Node, loc diag.Location) {
	succeeded := u.Succeeded()
	if succeeded {
		for _, name := range q.Bindings {
			v, ok := u.Var(name)
			if !ok {
				continue
			}
			term := v.Bind()
			if term.Kind() == ast.KindUndefinedTerm {
				continue
			}
			b := ast.Create(ast.KindBinding, loc)
			nameLeaf := ast.Leaf(ast.KindVar, loc, name)
			b.PushBack(nameLeaf)
			b.PushBack(term)
			b.SetKey(nameLeaf)
			result.PushBack(b)
		}
		for _, name := range q.Anon {
			v, ok := u.Var(name)
			if !ok {
				continue
			}
			for _, val := range v.Values {
				t := ast.Create(ast.KindTerm, loc)
				t.PushBack(val.Term)
				result.PushBack(t)
			}
		}
	}
	if result.NumChildren() == 0 {
		t := ast.Create(ast.KindTerm, loc)
		t.PushBack(ast.Leaf(ast.KindJSONFalse, loc, false))
		result.PushBack(t)
	}
}

// callRule resolves a call to a name that is neither an operator nor a
// registered builtin: an absolute data path, an input path, or a bare rule
// name, which resolves to the first package (in package-name order) that
// defines it. The with-stack is consulted for
// the full path and for every prefix along a document walk, innermost frame
// winning.
func (d *Driver) callRule(ctx *unify.Context, ev *unify.Evaluator, ix *ruleIndex, name string, args []*ast.Node, loc diag.Location) (*ast.Node, error) {
	if ov, ok := ctx.ResolveWith(name); ok {
		return ov, nil
	}
	if strings.HasPrefix(name, "data.") {
		segs := strings.Split(name[len("data."):], ".")
		for k := len(segs); k >= 2; k-- {
			path := strings.Join(segs[:k], ".")
			defs, ok := ix.byPath[path]
			if !ok {
				continue
			}
			term, err := d.evalDefs(ev, defs, args, loc)
			if err != nil {
				return nil, err
			}
			return walkPath(ctx, term, "data."+path, segs[k:], loc)
		}
		return walkDoc(ctx, "data", ctx.Data, segs, loc)
	}
	if strings.HasPrefix(name, "input.") {
		return walkDoc(ctx, "input", ctx.Input, strings.Split(name[len("input."):], "."), loc)
	}
	if defs, ok := ix.bare[name]; ok {
		return d.evalDefs(ev, defs, args, loc)
	}
	return nil, &resolve.EvalError{Loc: loc, Msg: fmt.Sprintf("unknown function %q", name)}
}

// evalDefs dispatches a group of same-named definitions by rule kind.
func (d *Driver) evalDefs(ev *unify.Evaluator, defs []*ast.Node, args []*ast.Node, loc diag.Location) (*ast.Node, error) {
	switch defs[0].Kind() {
	case ast.KindRuleSet:
		return ev.EvalRuleSet(defs)
	case ast.KindRuleObj:
		return ev.EvalRuleObj(defs)
	case ast.KindRuleFunc:
		var firstErr error
		for _, def := range defs {
			term, err := ev.EvalRuleFunc(def, args, loc)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if term.Kind() != ast.KindUndefinedTerm {
				return term, nil
			}
		}
		if firstErr != nil {
			return nil, firstErr
		}
		return ast.Leaf(ast.KindUndefinedTerm, loc, nil), nil
	default:
		if len(args) > 0 {
			return nil, &resolve.EvalError{Loc: loc, Msg: "calling a non-function rule with arguments"}
		}
		return ev.ResolveName(defs, loc)
	}
}

// walkDoc descends a document by dotted path, honoring with-overrides at
// the root and at every prefix.
func walkDoc(ctx *unify.Context, root string, doc *ast.Node, segs []string, loc diag.Location) (*ast.Node, error) {
	cur := doc
	if ov, ok := ctx.ResolveWith(root); ok {
		cur = ov
	}
	return walkPath(ctx, cur, root, segs, loc)
}

func walkPath(ctx *unify.Context, cur *ast.Node, prefix string, segs []string, loc diag.Location) (*ast.Node, error) {
	for _, seg := range segs {
		prefix += "." + seg
		if ov, ok := ctx.ResolveWith(prefix); ok {
			cur = ov
			continue
		}
		next, err := resolve.ApplyAccess(cur, ast.Leaf(ast.KindScalar, loc, seg), loc)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// mergeData merges every data document into one object, objects merging
// recursively and later documents winning on scalar conflicts.
func mergeData(docs []*ast.Node) *ast.Node {
	out := ast.Create(ast.KindObject, diag.Location{})
	for _, doc := range docs {
		if doc == nil || doc.Kind() != ast.KindObject {
			continue
		}
		out = mergeObjects(out, doc)
	}
	return out
}

func mergeObjects(a, b *ast.Node) *ast.Node {
	out := ast.Create(ast.KindObject, a.Loc())
	index := map[string]int{}
	for _, item := range a.Children() {
		key, _ := item.Child(0).Lit.(string)
		index[key] = out.NumChildren()
		out.PushBack(item.Clone())
	}
	for _, item := range b.Children() {
		key, _ := item.Child(0).Lit.(string)
		if i, ok := index[key]; ok {
			existing := out.Child(i)
			if existing.Child(1).Kind() == ast.KindObject && item.Child(1).Kind() == ast.KindObject {
				merged := mergeObjects(existing.Child(1), item.Child(1))
				replaceItemValue(existing, merged)
				continue
			}
			replaceItemValue(existing, item.Child(1).Clone())
			continue
		}
		index[key] = out.NumChildren()
		out.PushBack(item.Clone())
	}
	return out
}

func replaceItemValue(item *ast.Node, val *ast.Node) {
	item.ReplaceChild(1, val)
}

// ListRules enumerates every rule path defined by the driver's modules,
// package-qualified and in deterministic module order, without evaluating
// anything.
func (d *Driver) ListRules() []string {
	mods := append([]*ast.Node(nil), d.Modules...)
	sort.SliceStable(mods, func(i, j int) bool { return moduleName(mods[i]) < moduleName(mods[j]) })
	seen := map[string]bool{}
	var out []string
	for _, m := range mods {
		pkg := moduleName(m)
		for _, rule := range m.Child(2).Children() {
			switch rule.Kind() {
			case ast.KindRuleComp, ast.KindRuleFunc, ast.KindRuleSet, ast.KindRuleObj, ast.KindDefaultRule:
				name, _ := rule.Child(0).Lit.(string)
				path := "data." + pkg + "." + name
				if !seen[path] {
					seen[path] = true
					out = append(out, path)
				}
			}
		}
	}
	return out
}
