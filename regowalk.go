// Package regowalk is an interpreter for a declarative policy language
// whose surface syntax is Rego. An Engine collects policy modules, a base
// data document, and an input document, then answers query expressions with
// the variable bindings and terms that satisfy them.
//
//	eng := regowalk.New()
//	eng.AddModule("policy.rego", `package p
//	allow { input.user == "root" }`)
//	eng.AddInputJSON(`{"user": "root"}`)
//	out, err := eng.Query("data.p.allow")
package regowalk

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/debugdump"
	"github.com/ashgrove/regowalk/internal/diag"
	"github.com/ashgrove/regowalk/internal/jsonio"
	"github.com/ashgrove/regowalk/internal/query"
	"github.com/ashgrove/regowalk/internal/surface"
)

// Engine is the programmatic surface of the interpreter. It is not safe for
// concurrent use; run independent Engines on separate goroutines instead.
type Engine struct {
	modules  []*ast.Node
	dataDocs []*ast.Node
	input    *ast.Node

	debugPath    string
	debugEnabled bool
	wfChecks     bool
	executable   string
	log          *zap.Logger
}

func New() *Engine {
	return &Engine{
		debugPath:  ".",
		wfChecks:   true,
		executable: "regowalk",
		log:        zap.NewNop(),
	}
}

// AddModule parses source as one policy module. name labels the module in
// error messages.
func (e *Engine) AddModule(name, source string) error {
	mod, err := surface.ParseModule(&diag.Source{Name: name, Text: source})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	e.modules = append(e.modules, mod)
	return nil
}

func (e *Engine) AddModuleFile(path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return e.AddModule(path, string(text))
}

// AddDataJSON parses text as one base data document; multiple documents
// merge recursively in the order they were added.
func (e *Engine) AddDataJSON(text string) error {
	doc, err := jsonio.Read("data", text)
	if err != nil {
		return err
	}
	return e.AddData(doc)
}

func (e *Engine) AddDataJSONFile(path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := jsonio.Read(path, string(text))
	if err != nil {
		return err
	}
	return e.AddData(doc)
}

func (e *Engine) AddData(doc *ast.Node) error {
	if doc == nil || doc.Kind() != ast.KindObject {
		return errors.New("data document must be a JSON object")
	}
	e.dataDocs = append(e.dataDocs, doc)
	return nil
}

// AddInputJSON sets the input document. At most one input may be set; a
// second call fails.
func (e *Engine) AddInputJSON(text string) error {
	doc, err := jsonio.Read("input", text)
	if err != nil {
		return err
	}
	return e.AddInput(doc)
}

func (e *Engine) AddInputJSONFile(path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := jsonio.Read(path, string(text))
	if err != nil {
		return err
	}
	return e.AddInput(doc)
}

func (e *Engine) AddInput(doc *ast.Node) error {
	if e.input != nil {
		return errors.New("input is already set")
	}
	e.input = doc
	return nil
}

// DebugPath sets the directory per-pass tree dumps are written to when
// debug is enabled.
func (e *Engine) DebugPath(p string) *Engine { e.debugPath = p; return e }

func (e *Engine) DebugEnabled(b bool) *Engine { e.debugEnabled = b; return e }

func (e *Engine) WellFormedChecksEnabled(b bool) *Engine { e.wfChecks = b; return e }

// Executable records the program name used in diagnostics and dump file
// headers.
func (e *Engine) Executable(p string) *Engine { e.executable = p; return e }

// Logger installs a structured logger for pipeline and evaluation
// diagnostics; the default discards everything.
func (e *Engine) Logger(l *zap.Logger) *Engine {
	if l != nil {
		e.log = l
	}
	return e
}

func (e *Engine) driver() (*query.Driver, error) {
	d := query.New()
	d.Modules = e.modules
	d.DataDocs = e.dataDocs
	d.Input = e.input
	d.WFChecks = e.wfChecks
	d.Log = e.log
	if e.debugEnabled {
		dump, err := debugdump.New(e.debugPath)
		if err != nil {
			return nil, err
		}
		d.Dump = dump
	}
	return d, nil
}

// RawQuery evaluates expr and returns the Query node: Binding children for
// user-named variables, bare Term children for anonymous expressions, or an
// Error child when evaluation failed.
func (e *Engine) RawQuery(expr string) (*ast.Node, error) {
	d, err := e.driver()
	if err != nil {
		return nil, err
	}
	return d.Run(expr)
}

// Query evaluates expr and renders each result as one line of canonical
// JSON: a standalone term for anonymous expressions, or a
// {"bindings": {...}} object when the query bound variables.
func (e *Engine) Query(expr string) (string, error) {
	node, err := e.RawQuery(expr)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var bindings []*ast.Node
	for _, c := range node.Children() {
		switch c.Kind() {
		case ast.KindError:
			msg, _ := c.Lit.(string)
			return "", errors.New(msg)
		case ast.KindBinding:
			bindings = append(bindings, c)
		case ast.KindTerm:
			b.WriteString(jsonio.Emit(c.Child(0)))
			b.WriteByte('\n')
		}
	}
	if len(bindings) > 0 {
		b.WriteString(`{"bindings":{`)
		for i, bind := range bindings {
			if i > 0 {
				b.WriteByte(',')
			}
			name, _ := bind.Child(0).Lit.(string)
			fmt.Fprintf(&b, "%q:%s", name, jsonio.Emit(bind.Child(1)))
		}
		b.WriteString("}}\n")
	}
	return b.String(), nil
}

// ListRules enumerates every package-qualified rule path defined by the
// added modules, without evaluating anything.
func (e *Engine) ListRules() ([]string, error) {
	d, err := e.driver()
	if err != nil {
		return nil, err
	}
	return d.ListRules(), nil
}
