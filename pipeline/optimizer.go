package pipeline

import (
	"github.com/JorisTruong/setl/factory"
)

// Optimizer rewrites the stage list before execution. The rewritten list
// must induce the same edge set: a consumer may never land in the same
// stage as its producer or earlier. Run verifies this and falls back to the
// original stages when an optimizer misbehaves.
type Optimizer interface {
	Optimize(dag *DAG, stages []*Stage) ([]*Stage, error)
}

// StageMerger is the default optimizer. It compacts every factory into its
// minimal level: the stage right after its deepest producer. Stages whose
// factories have disjoint dependency chains collapse together; relative
// order within a level follows the original registration order.
type StageMerger struct{}

// Optimize implements Optimizer.
func (StageMerger) Optimize(dag *DAG, stages []*Stage) ([]*Stage, error) {
	if dag == nil || len(stages) == 0 {
		return stages, nil
	}

	levels := make(map[*Node]int)
	maxLevel := 0
	for _, n := range dag.Nodes() {
		level := 0
		for _, e := range n.Ingress {
			if e.From == nil {
				continue
			}
			if l := levels[e.From] + 1; l > level {
				level = l
			}
		}
		levels[n] = level
		if level > maxLevel {
			maxLevel = level
		}
	}

	merged := make([]*Stage, 0, maxLevel+1)
	for level := 0; level <= maxLevel; level++ {
		var fs []factory.Factory
		var descs []*factory.Descriptor
		parallel := false
		for _, n := range dag.Nodes() {
			if levels[n] != level {
				continue
			}
			fs = append(fs, n.Factory)
			descs = append(descs, n.Descriptor)
			if stages[n.StageID].Parallel() {
				parallel = true
			}
		}
		if len(fs) == 0 {
			continue
		}
		merged = append(merged, newStageFrom(fs, descs, parallel))
	}

	renumber(merged)
	return merged, nil
}

// renumber reassigns stage ids and the end marker after a rewrite.
func renumber(stages []*Stage) {
	for i, s := range stages {
		s.id = i
		s.end = i == len(stages)-1
	}
}
