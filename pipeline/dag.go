package pipeline

import (
	"fmt"
	"strings"

	"github.com/JorisTruong/setl/deliverable"
	"github.com/JorisTruong/setl/factory"
)

// Node is one factory instance in the execution graph.
type Node struct {
	StageID    int
	Factory    factory.Factory
	Descriptor *factory.Descriptor
	Ingress    []*Edge
	Egress     []*Edge
}

// Name returns the node's factory class identifier.
func (n *Node) Name() string {
	return n.Descriptor.Name
}

// Edge is a satisfied input-slot binding. From is nil when the slot is fed
// by an externally seeded deliverable.
type Edge struct {
	From       *Node
	To         *Node
	SlotIndex  int
	Type       deliverable.Type
	DeliveryID string
}

// ProducerLabel names the edge's origin, External for seeded inputs.
func (e *Edge) ProducerLabel() string {
	if e.From == nil {
		return deliverable.External
	}
	return e.From.Name()
}

// DAG is the validated execution graph: nodes partitioned by stage in
// ascending order, edges pointing from External or a strictly earlier stage.
// Cycles are impossible by construction.
type DAG struct {
	Stages [][]*Node
	Edges  []*Edge
}

// Nodes returns every node in stage order.
func (g *DAG) Nodes() []*Node {
	var out []*Node
	for _, stage := range g.Stages {
		out = append(out, stage...)
	}
	return out
}

// Describe renders the graph as text: one line per node, then each edge by
// its endpoint identifiers.
func (g *DAG) Describe() string {
	var b strings.Builder
	for stageID, nodes := range g.Stages {
		for _, n := range nodes {
			out := n.Descriptor.Output
			fmt.Fprintf(&b, "stage %d: %s -> %s", stageID, n.Name(), out.Type)
			if out.DeliveryID != "" {
				fmt.Fprintf(&b, " (deliveryId=%q)", out.DeliveryID)
			}
			b.WriteString("\n")
		}
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "%s -> %s [slot %d: %s", e.ProducerLabel(), e.To.Name(), e.SlotIndex, e.Type)
		if e.DeliveryID != "" {
			fmt.Fprintf(&b, ", deliveryId=%q", e.DeliveryID)
		}
		b.WriteString("]\n")
	}
	return b.String()
}
