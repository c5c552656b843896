// Package debugdump writes per-pass tree snapshots for pipeline debugging:
// after each pipeline stage the full tree is serialized to
// <dir>/<NN>_<passname>.trieste in a deterministic indented form suitable
// for diffing.
package debugdump

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ashgrove/regowalk/internal/ast"
)

// Dumper owns one dump directory. Every Dumper gets a run id so log lines
// from concurrent engines can be correlated with the files they wrote.
type Dumper struct {
	dir   string
	runID string
}

func New(dir string) (*Dumper, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Dumper{dir: dir, runID: uuid.NewString()}, nil
}

func (d *Dumper) RunID() string { return d.runID }

// Dump writes one snapshot. index is the 1-based stage number; numbers
// below 10 are zero-padded.
func (d *Dumper) Dump(index int, pass string, root *ast.Node) error {
	name := fmt.Sprintf("%02d_%s.trieste", index, pass)
	return os.WriteFile(filepath.Join(d.dir, name), []byte(Render(root)), 0o644)
}

// Render serializes a tree in the dump format: one node per line,
// two-space indentation, a leaf's literal after the kind tag (strings
// quoted, numbers and booleans bare).
func Render(root *ast.Node) string {
	var b strings.Builder
	render(root, 0, &b)
	return b.String()
}

func render(n *ast.Node, depth int, b *strings.Builder) {
	if n == nil {
		return
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteByte('(')
	b.WriteString(n.Kind().String())
	if lit := litText(n.Lit); lit != "" {
		b.WriteByte(' ')
		b.WriteString(lit)
	}
	if n.NumChildren() == 0 {
		b.WriteString(")\n")
		return
	}
	b.WriteByte('\n')
	for _, c := range n.Children() {
		render(c, depth+1, b)
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(")\n")
}

func litText(lit any) string {
	switch v := lit.(type) {
	case nil:
		return ""
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
