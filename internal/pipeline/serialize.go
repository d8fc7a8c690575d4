package pipeline

import (
	"fmt"
	"strings"

	"github.com/DonTizi/vistral/models"
)

// serializedTypeOrder fixes the grouping order of node types in the compact
// text form, so serialization is deterministic.
var serializedTypeOrder = []models.NodeType{
	models.NodeSpeaker,
	models.NodeTopic,
	models.NodeKPI,
	models.NodeSlide,
	models.NodeDecision,
	models.NodeClaim,
}

// SerializeGraph renders the graph as a compact text block for Pass B. This
// is the only input the reasoning stage sees: a few thousand tokens instead
// of the full transcript, while keeping the ids, timestamps, and quotes the
// model needs to cite evidence back to source material.
func SerializeGraph(graph *models.KnowledgeGraph) string {
	var lines []string
	lines = append(lines, "KNOWLEDGE GRAPH:", "")

	lines = append(lines, "NODES:")
	for _, ntype := range serializedTypeOrder {
		var typed []models.GraphNode
		for _, n := range graph.Nodes {
			if n.Type == ntype {
				typed = append(typed, n)
			}
		}
		if len(typed) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("  [%sS]", strings.ToUpper(string(ntype))))
		for _, n := range typed {
			attrs := ""
			switch n.Type {
			case models.NodeSpeaker:
				if n.Attributes.Speaker != nil && n.Attributes.Speaker.Role != "" && n.Attributes.Speaker.Role != "unknown" {
					attrs = fmt.Sprintf(" (%s)", n.Attributes.Speaker.Role)
				}
			case models.NodeKPI:
				if n.Attributes.KPI != nil {
					attrs = fmt.Sprintf(" = %s", n.Attributes.KPI.Value)
				}
			}
			lines = append(lines, fmt.Sprintf("    [%s] %s%s [%.0fs-%.0fs]", n.ID, n.Label, attrs, n.FirstSeen, n.LastSeen))
		}
	}

	lines = append(lines, "", "EDGES:")
	for _, e := range graph.Edges {
		quotePart := ""
		if e.Evidence.Quote != "" {
			quote := e.Evidence.Quote
			if len([]rune(quote)) > 60 {
				quote = clip(quote, 60) + "..."
			}
			quotePart = fmt.Sprintf(" %q", quote)
		}
		descPart := ""
		if e.Evidence.Description != "" {
			descPart = fmt.Sprintf(" (%s)", clip(e.Evidence.Description, 40))
		}
		lines = append(lines, fmt.Sprintf(
			"  %s --%s--> %s @%.0fs [%s, conf:%.2f]%s%s",
			e.Source, e.Relation, e.Target, e.Timestamp,
			e.Evidence.SourceType, e.Confidence, quotePart, descPart,
		))
	}

	lines = append(lines, "", fmt.Sprintf(
		"METADATA: duration=%.0fs, nodes=%d, edges=%d",
		graph.Metadata.DurationSeconds, graph.Metadata.TotalNodes, graph.Metadata.TotalEdges,
	))

	return strings.Join(lines, "\n")
}
