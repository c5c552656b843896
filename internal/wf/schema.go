// Package wf implements the well-formedness checker: a per-pass grammar
// from node kind to allowed child shape, checked over the whole tree while
// also rebuilding symbol tables.
//
// Schemas compose with the same combinator feel as the rewriter's pattern
// DSL (internal/rewrite): Of, Star, Opt, and Key, so both halves of the
// pipeline read the same way.
package wf

import "github.com/ashgrove/regowalk/internal/ast"

// Item is one element of a Production: either a single required child
// (possibly one of several alternative kinds), or a repeated/optional
// sub-item.
type Item struct {
	alts  []ast.Kind
	min   int // minimum repetitions (0 = optional, 1 = required)
	max   int // maximum repetitions (-1 = unbounded)
	isKey bool
}

// Of matches exactly one child whose kind is one of kinds.
func Of(kinds ...ast.Kind) Item { return Item{alts: kinds, min: 1, max: 1} }

// Key marks the given single-child item as the node's symbol-table key.
func Key(it Item) Item { it.isKey = true; return it }

// Star matches zero or more children of the given alternatives.
func Star(kinds ...ast.Kind) Item { return Item{alts: kinds, min: 0, max: -1} }

// Plus matches one or more children.
func Plus(kinds ...ast.Kind) Item { return Item{alts: kinds, min: 1, max: -1} }

// Opt matches zero or one child.
func Opt(kinds ...ast.Kind) Item { return Item{alts: kinds, min: 0, max: 1} }

func (it Item) allows(k ast.Kind) bool {
	for _, a := range it.alts {
		if a == k {
			return true
		}
	}
	return false
}

// Production is the ordered shape expected for one node kind's children.
type Production []Item

// Schema maps a node kind to its production. A kind with no entry is
// unconstrained (any children allowed), used for leaf kinds the
// checker does not police.
type Schema map[ast.Kind]Production

// Base returns the empty starting schema, under which every kind is
// unconstrained; internal/lower's NormalFormSchema overrides it.
func Base() Schema { return Schema{} }

// Override returns a new Schema equal to base with entries from deltas
// replacing (not merging) same-keyed entries, so each stage's grammar only
// states its delta over the previous one.
func Override(base Schema, deltas Schema) Schema {
	out := make(Schema, len(base)+len(deltas))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range deltas {
		out[k] = v
	}
	return out
}
