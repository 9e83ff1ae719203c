package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JorisTruong/setl/pipeline"
)

// Mermaid renders the plan as a mermaid flowchart, stages as subgraphs.
func Mermaid(dag *pipeline.DAG) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	ids := nodeIDs(dag)
	external := false
	for _, e := range dag.Edges {
		if e.From == nil {
			external = true
			break
		}
	}
	if external {
		b.WriteString("    external([external])\n")
	}

	for stageID, nodes := range dag.Stages {
		fmt.Fprintf(&b, "    subgraph stage%d\n", stageID)
		for _, n := range nodes {
			fmt.Fprintf(&b, "        %s[\"%s\"]\n", ids[n], n.Name())
		}
		b.WriteString("    end\n")
	}

	for _, e := range dag.Edges {
		from := "external"
		if e.From != nil {
			from = ids[e.From]
		}
		label := e.Type.String()
		if e.DeliveryID != "" {
			label = fmt.Sprintf("%s (%s)", label, e.DeliveryID)
		}
		fmt.Fprintf(&b, "    %s -->|\"%s\"| %s\n", from, label, ids[e.To])
	}
	return b.String()
}

// jsonNode and jsonEdge are the machine-readable rendering of the plan.
type jsonNode struct {
	Stage   int    `json:"stage"`
	Factory string `json:"factory"`
	Output  string `json:"output"`
}

type jsonEdge struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Slot       int    `json:"slot"`
	Type       string `json:"type"`
	DeliveryID string `json:"delivery_id,omitempty"`
}

type jsonPlan struct {
	Nodes []jsonNode `json:"nodes"`
	Edges []jsonEdge `json:"edges"`
}

// JSON renders the plan as indented JSON.
func JSON(dag *pipeline.DAG) ([]byte, error) {
	plan := jsonPlan{Nodes: []jsonNode{}, Edges: []jsonEdge{}}
	for stageID, nodes := range dag.Stages {
		for _, n := range nodes {
			plan.Nodes = append(plan.Nodes, jsonNode{
				Stage:   stageID,
				Factory: n.Name(),
				Output:  n.Descriptor.Output.Type.String(),
			})
		}
	}
	for _, e := range dag.Edges {
		plan.Edges = append(plan.Edges, jsonEdge{
			From:       e.ProducerLabel(),
			To:         e.To.Name(),
			Slot:       e.SlotIndex,
			Type:       e.Type.String(),
			DeliveryID: e.DeliveryID,
		})
	}
	return json.MarshalIndent(plan, "", "  ")
}

// nodeIDs assigns stable short identifiers for diagram rendering.
func nodeIDs(dag *pipeline.DAG) map[*pipeline.Node]string {
	ids := make(map[*pipeline.Node]string)
	i := 0
	for _, nodes := range dag.Stages {
		for _, n := range nodes {
			ids[n] = fmt.Sprintf("n%d", i)
			i++
		}
	}
	return ids
}
