package evaldag

import (
	"fmt"

	"github.com/agentruntime/core/errs"
)

// startNode is the synthetic root every dependency-free criterion hangs off.
const startNode = "START"

// node is one compiled graph node: a criterion plus its resolved successors.
type node struct {
	criterion  Criterion // zero value for the synthetic START node
	successors []string
}

// DAG is a compiled, acyclic evaluation graph ready for execution.
type DAG struct {
	suiteID string
	nodes   map[string]*node // keyed by criterion name, plus startNode
	order   []string         // criterion names in declaration order, for deterministic iteration
}

// Compile derives the dependency graph from suite: one node per criterion
// plus a synthetic START, an edge START→c for every dependency-free
// criterion, and an edge dep→c for every declared dependency. Cycles are
// rejected at compile time (spec.md §4.4).
func Compile(suite Suite) (*DAG, error) {
	nodes := make(map[string]*node, len(suite.Criteria)+1)
	nodes[startNode] = &node{}
	order := make([]string, 0, len(suite.Criteria))

	for _, c := range suite.Criteria {
		if c.Name == "" {
			return nil, errs.New(errs.KindValidation, "criterion name is required")
		}
		if _, exists := nodes[c.Name]; exists {
			return nil, errs.New(errs.KindValidation, "duplicate criterion name").WithField("name", c.Name)
		}
		nodes[c.Name] = &node{criterion: c}
		order = append(order, c.Name)
	}

	for _, c := range suite.Criteria {
		if len(c.DependsOn) == 0 {
			nodes[startNode].successors = append(nodes[startNode].successors, c.Name)
			continue
		}
		for _, dep := range c.DependsOn {
			parent, ok := nodes[dep]
			if !ok {
				return nil, errs.New(errs.KindValidation, "unknown dependency").
					WithField("criterion", c.Name).WithField("dependency", dep)
			}
			parent.successors = append(parent.successors, c.Name)
		}
	}

	d := &DAG{suiteID: suite.ID, nodes: nodes, order: order}
	if err := d.checkAcyclic(); err != nil {
		return nil, err
	}
	return d, nil
}

// checkAcyclic detects back-edges via a three-color DFS over the whole node
// set, not just the subgraph reachable from START: a criterion whose cycle
// never bottoms out at a dependency-free node has no START→c edge and would
// otherwise stay white forever (spec.md §4.4 "reject cycles at compile
// time").
func (d *DAG) checkAcyclic() error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(d.nodes))
	for name := range d.nodes {
		color[name] = white
	}

	var visit func(name string) error
	visit = func(name string) error {
		color[name] = gray
		for _, succ := range d.nodes[name].successors {
			switch color[succ] {
			case gray:
				return errs.New(errs.KindValidation, fmt.Sprintf("cycle detected involving criterion %q", succ))
			case white:
				if err := visit(succ); err != nil {
					return err
				}
			}
		}
		color[name] = black
		return nil
	}

	if err := visit(startNode); err != nil {
		return err
	}
	for name, c := range color {
		if c == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// indegree counts, for every non-START node, the number of entries in its
// declared dependency list, duplicates included, matching the one edge per
// entry that Compile adds (used by the executor to know when a criterion
// becomes runnable).
func (d *DAG) indegree() map[string]int {
	in := make(map[string]int, len(d.nodes))
	for name, n := range d.nodes {
		if name == startNode {
			continue
		}
		in[name] = len(n.criterion.DependsOn)
	}
	return in
}
