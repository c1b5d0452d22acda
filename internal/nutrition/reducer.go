package nutrition

import (
	"fmt"
	"math"
)

// MaxReduceRounds is the number of passes over the rule table before the
// reduction is declared non-convergent.
const MaxReduceRounds = 5

// Rule rewrites the pair {A, B} into Result when both are present.
type Rule struct {
	A      Qualifier
	B      Qualifier
	Result Qualifier
}

// RuleTables holds the three rule tables. NonZero or NearZero is chosen from
// the summed value, then Common is applied after it.
type RuleTables struct {
	NonZero  []Rule
	NearZero []Rule
	Common   []Rule
}

// DefaultRuleTables is the table shipped with the default engine configuration.
func DefaultRuleTables() RuleTables {
	return RuleTables{
		NonZero: []Rule{
			{Exact, Unknown, Exact},
			{Exact, Trace, Exact},
			{BelowLimit, Unknown, BelowLimit},
			{Trace, Unknown, Trace},
		},
		NearZero: []Rule{
			{Exact, Unknown, Unknown},
			{Exact, Trace, Trace},
			{BelowLimit, Unknown, Unknown},
			{Trace, Unknown, Trace},
		},
		Common: []Rule{
			{Exact, BelowLimit, BelowLimit},
			{BelowLimit, Trace, BelowLimit},
		},
	}
}

// qualifierSet is a bitset over the four qualifiers.
type qualifierSet uint8

func (s qualifierSet) has(q Qualifier) bool { return s&(1<<uint(q)) != 0 }
func (s *qualifierSet) add(q Qualifier)     { *s |= 1 << uint(q) }
func (s *qualifierSet) remove(q Qualifier)  { *s &^= 1 << uint(q) }

func (s qualifierSet) len() int {
	n := 0
	for _, q := range AllQualifiers {
		if s.has(q) {
			n++
		}
	}
	return n
}

func (s qualifierSet) single() Qualifier {
	for _, q := range AllQualifiers {
		if s.has(q) {
			return q
		}
	}
	return Unknown
}

// Reducer collapses the qualifiers of a summed quantity into one.
type Reducer struct {
	nonZero  []Rule
	nearZero []Rule
	epsilon  float64
}

// NewReducer validates the tables and builds a Reducer. Values whose absolute
// value is not above epsilon use the near-zero table.
func NewReducer(tables RuleTables, epsilon float64) (*Reducer, error) {
	for _, table := range [][]Rule{tables.NonZero, tables.NearZero, tables.Common} {
		for _, r := range table {
			if !r.A.Valid() || !r.B.Valid() || !r.Result.Valid() {
				return nil, fmt.Errorf("%w: %v", ErrInvalidRule, r)
			}
			if r.A == r.B {
				return nil, fmt.Errorf("%w: %s paired with itself", ErrInvalidRule, r.A)
			}
		}
	}
	if epsilon < 0 {
		return nil, fmt.Errorf("%w: negative epsilon %g", ErrInvalidRule, epsilon)
	}

	join := func(a, b []Rule) []Rule {
		out := make([]Rule, 0, len(a)+len(b))
		out = append(out, a...)
		return append(out, b...)
	}
	return &Reducer{
		nonZero:  join(tables.NonZero, tables.Common),
		nearZero: join(tables.NearZero, tables.Common),
		epsilon:  epsilon,
	}, nil
}

// Reduce returns the single qualifier representing qualifiers for the summed
// value. Only which qualifiers are present matters, never their order or count.
func (r *Reducer) Reduce(qualifiers []Qualifier, sum float64) (Qualifier, error) {
	var set qualifierSet
	for _, q := range qualifiers {
		if !q.Valid() {
			return Unknown, InternalErrorf("reduce", "%w: %d", ErrUnknownQualifier, int(q))
		}
		set.add(q)
	}
	if set == 0 {
		return Unknown, InternalErrorf("reduce", "%w", ErrNoQualifiers)
	}

	rules := r.nonZero
	if math.Abs(sum) <= r.epsilon {
		rules = r.nearZero
	}

	for round := 0; round < MaxReduceRounds && set.len() > 1; round++ {
		for _, rule := range rules {
			if set.len() == 1 {
				break
			}
			if set.has(rule.A) && set.has(rule.B) {
				set.remove(rule.A)
				set.remove(rule.B)
				set.add(rule.Result)
			}
		}
	}

	if set.len() != 1 {
		return Unknown, InternalErrorf("reduce", "%w after %d rounds (%d qualifiers left)",
			ErrNotConverged, MaxReduceRounds, set.len())
	}
	return set.single(), nil
}
