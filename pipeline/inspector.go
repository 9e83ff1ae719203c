package pipeline

import (
	"github.com/JorisTruong/setl/deliverable"
	"github.com/JorisTruong/setl/internal/logger"
	setlerrors "github.com/JorisTruong/setl/pkg/errors"
)

// Inspector builds and validates the execution graph before anything runs.
// It is pure: the same stages and seeds always produce the same DAG.
type Inspector struct {
	log *logger.Logger
}

// NewInspector creates an inspector.
func NewInspector(log *logger.Logger) *Inspector {
	if log == nil {
		log = logger.Nop()
	}
	return &Inspector{log: log}
}

// candidate pairs an envelope with its producing node; the node is nil for
// externally seeded deliverables. Upstream outputs are represented by
// payload-less synthetic envelopes so slot resolution follows the exact
// matching rule the dispatcher applies at run time.
type candidate struct {
	env  *deliverable.Deliverable
	node *Node
}

// Inspect verifies that every required slot of every factory is satisfied
// by an external seed or a strictly earlier stage's output, and returns the
// resulting DAG. Unsatisfiable or ambiguous slots fail here, before any
// factory executes.
func (ins *Inspector) Inspect(stages []*Stage, seeded []*deliverable.Deliverable) (*DAG, error) {
	dag := &DAG{Stages: make([][]*Node, len(stages))}

	available := make([]candidate, 0, len(seeded))
	for _, d := range seeded {
		available = append(available, candidate{env: d})
	}

	for stageID, stage := range stages {
		factories := stage.Factories()
		descriptors := stage.Descriptors()

		nodes := make([]*Node, len(descriptors))
		for i, desc := range descriptors {
			nodes[i] = &Node{StageID: stageID, Factory: factories[i], Descriptor: desc}
		}
		dag.Stages[stageID] = nodes

		for _, node := range nodes {
			for slotIndex, slot := range node.Descriptor.Slots {
				edge, err := ins.resolveSlot(available, node, slotIndex)
				if err != nil {
					return nil, err
				}
				if edge == nil {
					continue
				}
				node.Ingress = append(node.Ingress, edge)
				if edge.From != nil {
					edge.From.Egress = append(edge.From.Egress, edge)
				}
				dag.Edges = append(dag.Edges, edge)
			}
		}

		// Outputs become available only to later stages, which is what
		// forbids intra-stage dependencies.
		for _, node := range nodes {
			available = append(available, candidate{env: syntheticOutput(node), node: node})
		}
	}

	ins.log.Debug("inspection complete", "stages", len(stages), "edges", len(dag.Edges))
	return dag, nil
}

func (ins *Inspector) resolveSlot(available []candidate, node *Node, slotIndex int) (*Edge, error) {
	slot := node.Descriptor.Slots[slotIndex]
	q := slot.Query()

	envs := make([]*deliverable.Deliverable, len(available))
	for i, c := range available {
		envs[i] = c.env
	}

	idx, err := deliverable.ResolveAmong(envs, q, false)
	if err != nil {
		return nil, err
	}
	if idx < 0 && slot.AutoLoad {
		idx, err = deliverable.ResolveAmong(envs, q, true)
		if err != nil {
			return nil, err
		}
	}
	if idx < 0 {
		if slot.Optional {
			return nil, nil
		}
		return nil, setlerrors.NewUnsatisfiedInputError(slot.Consumer, slot.Type.String(), slot.DeliveryID, slot.Producer)
	}

	return &Edge{
		From:       available[idx].node,
		To:         node,
		SlotIndex:  slotIndex,
		Type:       slot.Type,
		DeliveryID: slot.DeliveryID,
	}, nil
}

// syntheticOutput is the envelope a node will publish, minus the payload.
func syntheticOutput(node *Node) *deliverable.Deliverable {
	out := node.Descriptor.Output
	return deliverable.NewTyped(nil, out.Type).
		WithProducer(node.Name()).
		WithDeliveryID(out.DeliveryID).
		WithConsumers(out.Consumers...)
}
