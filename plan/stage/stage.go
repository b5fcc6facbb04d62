// Package stage classifies each operator of a pipeline as Scan, Build, Probe
// or PassThrough.
//
// A Classifier combines a base Rule with per-operator overrides. Rules never
// fail loudly: a rule whose structural precondition does not hold returns a
// Result with OK unset, and the classifier picks the documented fallback
// stage instead.
package stage

import (
	"fmt"
	"strings"

	"github.com/wbrown/plancanon/plan"
)

// Input is one operator at a position inside its pipeline.
type Input struct {
	Pos  int          // Position in Ops
	Node *plan.Node   // Ops[Pos]
	Ops  []*plan.Node // Pipeline members, scan end first

	// Parent resolves the parent of a node id in the whole plan. May be nil
	// when the caller has no parent index.
	Parent func(id int) (*plan.Node, bool)
}

// First reports whether the operator starts its pipeline
func (in Input) First() bool { return in.Pos == 0 }

// Last reports whether the operator ends its pipeline
func (in Input) Last() bool { return in.Pos == len(in.Ops)-1 }

// Predecessor returns the operator right before this one, or nil.
func (in Input) Predecessor() *plan.Node {
	if in.Pos <= 0 || in.Pos > len(in.Ops) {
		return nil
	}
	return in.Ops[in.Pos-1]
}

// HasParent reports whether the operator has a parent in the plan.
func (in Input) HasParent() bool {
	if in.Parent == nil {
		return false
	}
	_, ok := in.Parent(in.Node.ID)
	return ok
}

// Result is the outcome of a Rule
type Result struct {
	Stage plan.Stage
	OK    bool // False when the rule's precondition did not hold
}

// Classified returns a successful Result
func Classified(s plan.Stage) Result { return Result{Stage: s, OK: true} }

// PreconditionFailed is the Result of a rule that does not apply.
var PreconditionFailed = Result{}

// Rule is a base classification rule
type Rule func(in Input) Result

// Decision is a classifier's final answer.
type Decision struct {
	Stage    plan.Stage
	Fallback bool // The base rule did not apply and a fallback stage was used
}

// Override replaces the classifier's handling of one operator type. It may
// consult the base rule.
type Override func(in Input, base Rule) Decision

// Fixed returns an override that always answers s.
func Fixed(s plan.Stage) Override {
	return func(Input, Rule) Decision { return Decision{Stage: s} }
}

// OrElse returns an override that defers to the base rule and answers s
// when the rule's precondition fails.
func OrElse(s plan.Stage) Override {
	return func(in Input, base Rule) Decision {
		if r := base(in); r.OK {
			return Decision{Stage: r.Stage}
		}
		return Decision{Stage: s, Fallback: true}
	}
}

// Classifier assigns stages under one dialect's policy. It is immutable and
// safe for concurrent use.
type Classifier struct {
	name      string
	base      Rule
	overrides map[plan.Op]Override
	fallback  plan.Stage
}

// New creates a classifier that answers with base, or fallback when base
// does not apply.
func New(name string, base Rule, fallback plan.Stage) *Classifier {
	return &Classifier{
		name:      name,
		base:      base,
		overrides: make(map[plan.Op]Override),
		fallback:  fallback,
	}
}

// With returns a copy of c that handles the given operator types with o.
func (c *Classifier) With(o Override, ops ...plan.Op) *Classifier {
	cp := &Classifier{
		name:      c.name,
		base:      c.base,
		overrides: make(map[plan.Op]Override, len(c.overrides)+len(ops)),
		fallback:  c.fallback,
	}
	for op, existing := range c.overrides {
		cp.overrides[op] = existing
	}
	for _, op := range ops {
		cp.overrides[op] = o
	}
	return cp
}

// Name returns the dialect name the classifier was built for
func (c *Classifier) Name() string { return c.name }

// Decide classifies in and reports whether a fallback was taken.
func (c *Classifier) Decide(in Input) Decision {
	if o, ok := c.overrides[in.Node.Op()]; ok {
		return o(in, c.base)
	}
	if r := c.base(in); r.OK {
		return Decision{Stage: r.Stage}
	}
	return Decision{Stage: c.fallback, Fallback: true}
}

// Classify returns the stage of in
func (c *Classifier) Classify(in Input) plan.Stage {
	return c.Decide(in).Stage
}

// Pipeline classifies every member of ops, in order.
func (c *Classifier) Pipeline(ops []*plan.Node, parent func(int) (*plan.Node, bool)) []Decision {
	decisions := make([]Decision, len(ops))
	for i, n := range ops {
		decisions[i] = c.Decide(Input{Pos: i, Node: n, Ops: ops, Parent: parent})
	}
	return decisions
}

// ForDialect returns the classifier for a source dialect. Dialects without
// dedicated policy use Default.
func ForDialect(name string) *Classifier {
	switch strings.ToLower(name) {
	case "postgres":
		return Postgres()
	case "", "canonical":
		return Default()
	}
	return New(strings.ToLower(name), DefaultRule, plan.PassThrough)
}

// String describes the classifier
func (c *Classifier) String() string {
	return fmt.Sprintf("stage.Classifier(%s, %d overrides, fallback %s)", c.name, len(c.overrides), c.fallback)
}
