package norm

import (
	"fmt"
	"sort"
	"strings"
)

// #region literal
// LiteralType names the role of a literal inside a conjunction.
type LiteralType string

const (
	CondPos LiteralType = "condpos" // detachment position, "km<k>"
	Appl    LiteralType = "appl"    // agent type the clause is restricted to
	Speed   LiteralType = "speed"   // speed threshold
	Dist    LiteralType = "dist"    // following distance threshold
	DeadPos LiteralType = "deadpos" // deadline position, "km<k>"
)

// Literal is one typed atom of a conjunction.
type Literal struct {
	Type  LiteralType
	Value string
}

func (l Literal) String() string {
	return fmt.Sprintf("%s:%s", l.Type, l.Value)
}

// ParseLiteral parses the "type:value" rendering produced by Literal.String.
func ParseLiteral(s string) (Literal, error) {
	typ, val, ok := strings.Cut(s, ":")
	if !ok || val == "" {
		return Literal{}, fmt.Errorf("parse literal %q: want type:value", s)
	}
	switch LiteralType(typ) {
	case CondPos, Appl, Speed, Dist, DeadPos:
	default:
		return Literal{}, fmt.Errorf("parse literal %q: unknown type %q", s, typ)
	}
	return Literal{Type: LiteralType(typ), Value: val}, nil
}

// #endregion literal

// #region conjunction
// Conjunction is an AND-clause of typed literals. Literal order is kept, so
// the occurrence index of a literal is its rank among literals of the same
// type. A value present under any type is never added twice. Values are
// immutable; the With* methods return modified copies.
type Conjunction struct {
	lits []Literal
}

// NewConjunction builds a conjunction by adding lits in order.
func NewConjunction(lits ...Literal) Conjunction {
	var c Conjunction
	for _, l := range lits {
		c = c.With(l.Type, l.Value)
	}
	return c
}

// With returns a copy with the literal appended, unless value is already present.
func (c Conjunction) With(t LiteralType, value string) Conjunction {
	if c.Has(value) {
		return c
	}
	lits := make([]Literal, len(c.lits), len(c.lits)+1)
	copy(lits, c.lits)
	return Conjunction{lits: append(lits, Literal{Type: t, Value: value})}
}

// WithAll returns a copy with every literal of other added in order.
func (c Conjunction) WithAll(other Conjunction) Conjunction {
	out := c
	for _, l := range other.lits {
		out = out.With(l.Type, l.Value)
	}
	return out
}

// WithOnly returns a copy where all literals of type t are replaced by a
// single literal carrying value, placed where the first one was.
func (c Conjunction) WithOnly(t LiteralType, value string) Conjunction {
	lits := make([]Literal, 0, len(c.lits))
	placed := false
	for _, l := range c.lits {
		if l.Type != t {
			if l.Value == value {
				continue
			}
			lits = append(lits, l)
			continue
		}
		if !placed {
			lits = append(lits, Literal{Type: t, Value: value})
			placed = true
		}
	}
	if !placed {
		lits = append(lits, Literal{Type: t, Value: value})
	}
	return Conjunction{lits: lits}
}

// Has reports whether value is present under any type.
func (c Conjunction) Has(value string) bool {
	for _, l := range c.lits {
		if l.Value == value {
			return true
		}
	}
	return false
}

// Count returns the number of literals of type t.
func (c Conjunction) Count(t LiteralType) int {
	n := 0
	for _, l := range c.lits {
		if l.Type == t {
			n++
		}
	}
	return n
}

// Values returns the values of type t in occurrence order.
func (c Conjunction) Values(t LiteralType) []string {
	var out []string
	for _, l := range c.lits {
		if l.Type == t {
			out = append(out, l.Value)
		}
	}
	return out
}

// Value returns the first value of type t.
func (c Conjunction) Value(t LiteralType) (string, bool) {
	for _, l := range c.lits {
		if l.Type == t {
			return l.Value, true
		}
	}
	return "", false
}

// Literals returns a copy of the literals in order.
func (c Conjunction) Literals() []Literal {
	return append([]Literal(nil), c.lits...)
}

// Len returns the number of literals.
func (c Conjunction) Len() int {
	return len(c.lits)
}

// Key is the sorted multiset of values joined by " & ". Two conjunctions
// holding the same values compare equal regardless of order.
func (c Conjunction) Key() string {
	vals := make([]string, len(c.lits))
	for i, l := range c.lits {
		vals[i] = l.Value
	}
	sort.Strings(vals)
	return strings.Join(vals, " & ")
}

// Equal compares by Key.
func (c Conjunction) Equal(other Conjunction) bool {
	return c.Key() == other.Key()
}

func (c Conjunction) String() string {
	return c.Key()
}

// #endregion conjunction

// #region formula
// Formula is a disjunction of conjunctions. A nil Formula marks an empty norm.
type Formula []Conjunction

// Key renders the disjuncts in order, "[a & b, c]".
func (f Formula) Key() string {
	parts := make([]string, len(f))
	for i, c := range f {
		parts[i] = c.Key()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (f Formula) String() string {
	return f.Key()
}

// Clone returns a copy of the disjunct list. Conjunctions are values and are shared.
func (f Formula) Clone() Formula {
	if f == nil {
		return nil
	}
	return append(Formula(nil), f...)
}

// Literals renders every disjunct as its "type:value" tokens.
func (f Formula) Literals() [][]string {
	out := make([][]string, len(f))
	for i, c := range f {
		toks := make([]string, 0, c.Len())
		for _, l := range c.lits {
			toks = append(toks, l.String())
		}
		out[i] = toks
	}
	return out
}

// ParseFormula rebuilds a formula from the output of Formula.Literals.
func ParseFormula(disjuncts [][]string) (Formula, error) {
	f := make(Formula, 0, len(disjuncts))
	for _, toks := range disjuncts {
		lits := make([]Literal, 0, len(toks))
		for _, tok := range toks {
			l, err := ParseLiteral(tok)
			if err != nil {
				return nil, err
			}
			lits = append(lits, l)
		}
		f = append(f, NewConjunction(lits...))
	}
	return f, nil
}

// #endregion formula
