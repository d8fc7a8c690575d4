package models

// NodeType classifies a knowledge graph node.
type NodeType string

const (
	NodeSpeaker  NodeType = "speaker"
	NodeTopic    NodeType = "topic"
	NodeKPI      NodeType = "kpi"
	NodeSlide    NodeType = "slide"
	NodeDecision NodeType = "decision"
	NodeClaim    NodeType = "claim"
)

// RelationType classifies a knowledge graph edge.
type RelationType string

const (
	RelationMentioned   RelationType = "mentioned"
	RelationSaidBy      RelationType = "said_by"
	RelationShownDuring RelationType = "shown_during"
	RelationContradicts RelationType = "contradicts"
	RelationDecided     RelationType = "decided"
	RelationCommittedTo RelationType = "committed_to"
	RelationRelatedTo   RelationType = "related_to"
)

// Evidence backs an edge with a citation to source material.
type Evidence struct {
	SourceType  string `json:"source_type"` // "audio" | "visual" | "merged"
	Quote       string `json:"quote,omitempty"`
	Description string `json:"description,omitempty"`
	FramePath   string `json:"frame_path,omitempty"`
}

// SpeakerAttrs holds speaker-specific node attributes.
type SpeakerAttrs struct {
	Role             string   `json:"role"`
	KeyContributions []string `json:"key_contributions"`
}

// TopicAttrs holds topic-specific node attributes.
type TopicAttrs struct {
	KeyPoints        []string `json:"key_points"`
	SpeakersInvolved []string `json:"speakers_involved"`
}

// KPIAttrs holds KPI-specific node attributes.
type KPIAttrs struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Context string `json:"context"`
}

// SlideAttrs holds slide-specific node attributes.
type SlideAttrs struct {
	OCRText          []string `json:"ocr_text"`
	SceneDescription string   `json:"scene_description"`
	FramePath        string   `json:"frame_path"`
}

// DecisionAttrs holds decision-specific node attributes.
type DecisionAttrs struct {
	Context string `json:"context"`
}

// ClaimAttrs holds claim-specific node attributes.
type ClaimAttrs struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

// NodeAttributes is a tagged union keyed by the node's type. Exactly one
// member is set, matching GraphNode.Type.
type NodeAttributes struct {
	Speaker  *SpeakerAttrs  `json:"speaker,omitempty"`
	Topic    *TopicAttrs    `json:"topic,omitempty"`
	KPI      *KPIAttrs      `json:"kpi,omitempty"`
	Slide    *SlideAttrs    `json:"slide,omitempty"`
	Decision *DecisionAttrs `json:"decision,omitempty"`
	Claim    *ClaimAttrs    `json:"claim,omitempty"`
}

// GraphNode is an entity in the temporal knowledge graph. Nodes are created
// once during construction and not mutated afterwards.
type GraphNode struct {
	ID         string         `json:"id"`
	Type       NodeType       `json:"type"`
	Label      string         `json:"label"`
	FirstSeen  float64        `json:"first_seen"`
	LastSeen   float64        `json:"last_seen"`
	Attributes NodeAttributes `json:"attributes"`
}

// GraphEdge is a directed, timestamped relation between two nodes. Edges are
// append-only; multiple edges between the same pair are allowed.
type GraphEdge struct {
	Source     string       `json:"source"`
	Target     string       `json:"target"`
	Relation   RelationType `json:"relation"`
	Timestamp  float64      `json:"timestamp"`
	Confidence float64      `json:"confidence"`
	Evidence   Evidence     `json:"evidence"`
}

// TimelineSnapshot is a derived view of which nodes and edges are active at a
// point in time. Recomputable from nodes+edges; never a source of truth.
type TimelineSnapshot struct {
	Timestamp      float64  `json:"timestamp"`
	ActiveNodes    []string `json:"active_nodes"`
	ActiveEdges    []string `json:"active_edges"`
	CurrentTopic   string   `json:"current_topic,omitempty"`
	CurrentSpeaker string   `json:"current_speaker,omitempty"`
}

// GraphMetadata summarizes a constructed graph.
type GraphMetadata struct {
	DurationSeconds float64        `json:"duration_seconds"`
	TotalNodes      int            `json:"total_nodes"`
	TotalEdges      int            `json:"total_edges"`
	NodeTypes       map[string]int `json:"node_types"`
}

// KnowledgeGraph owns the nodes, edges, timeline and metadata for one job.
// It is built once per job and immutable after construction.
type KnowledgeGraph struct {
	Nodes    []GraphNode        `json:"nodes"`
	Edges    []GraphEdge        `json:"edges"`
	Timeline []TimelineSnapshot `json:"timeline"`
	Metadata GraphMetadata      `json:"metadata"`
}
