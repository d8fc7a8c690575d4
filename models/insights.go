package models

// EvidenceChain is a timestamped citation backing an insight.
type EvidenceChain struct {
	Timestamp   float64 `json:"timestamp"`
	Source      string  `json:"source"` // "audio" | "visual"
	Quote       string  `json:"quote,omitempty"`
	Description string  `json:"description,omitempty"`
}

// InsightTopic is one topic arc identified by Pass B.
type InsightTopic struct {
	Name             string          `json:"name"`
	StartTime        float64         `json:"start_time"`
	EndTime          float64         `json:"end_time"`
	KeyPoints        []string        `json:"key_points"`
	SpeakersInvolved []string        `json:"speakers_involved"`
	Evidence         []EvidenceChain `json:"evidence"`
}

// InsightActionItem is an actionable task with its assignee.
type InsightActionItem struct {
	Description string          `json:"description"`
	Assignee    string          `json:"assignee,omitempty"`
	Priority    string          `json:"priority,omitempty"`
	Evidence    []EvidenceChain `json:"evidence"`
}

// InsightDecision is a decision with attribution and context.
type InsightDecision struct {
	Description string          `json:"description"`
	MadeBy      string          `json:"made_by,omitempty"`
	Timestamp   float64         `json:"timestamp"`
	Context     string          `json:"context,omitempty"`
	Evidence    []EvidenceChain `json:"evidence"`
}

// ContradictionClaim is one side of a detected contradiction.
type ContradictionClaim struct {
	Source     string  `json:"source"`
	Quote      string  `json:"quote"`
	Timestamp  float64 `json:"timestamp"`
	SourceType string  `json:"source_type"`
}

// InsightContradiction pairs two conflicting claims.
type InsightContradiction struct {
	Description string             `json:"description"`
	ClaimA      ContradictionClaim `json:"claim_a"`
	ClaimB      ContradictionClaim `json:"claim_b"`
	Explanation string             `json:"explanation,omitempty"`
	Severity    string             `json:"severity,omitempty"`
}

// InsightKPI is a quantitative metric surfaced by Pass B.
type InsightKPI struct {
	Name        string          `json:"name"`
	Value       string          `json:"value"`
	Context     string          `json:"context,omitempty"`
	MentionedBy string          `json:"mentioned_by,omitempty"`
	Timestamp   float64         `json:"timestamp"`
	Evidence    []EvidenceChain `json:"evidence"`
}

// InsightQuote is a notable quote with attribution.
type InsightQuote struct {
	Speaker   string  `json:"speaker"`
	Quote     string  `json:"quote"`
	Timestamp float64 `json:"timestamp"`
	Context   string  `json:"context,omitempty"`
}

// Insights is the full Pass B output. Missing fields in the model response
// are backfilled with empty defaults rather than failing the pipeline.
type Insights struct {
	Summary        string                 `json:"summary"`
	Topics         []InsightTopic         `json:"topics"`
	ActionItems    []InsightActionItem    `json:"action_items"`
	Decisions      []InsightDecision      `json:"decisions"`
	Contradictions []InsightContradiction `json:"contradictions"`
	KPIs           []InsightKPI           `json:"kpis"`
	KeyQuotes      []InsightQuote         `json:"key_quotes"`
}

// Backfill replaces nil collections and an empty summary with defaults so
// downstream consumers never see missing fields.
func (ins *Insights) Backfill() {
	if ins.Summary == "" {
		ins.Summary = "No summary available."
	}
	if ins.Topics == nil {
		ins.Topics = []InsightTopic{}
	}
	if ins.ActionItems == nil {
		ins.ActionItems = []InsightActionItem{}
	}
	if ins.Decisions == nil {
		ins.Decisions = []InsightDecision{}
	}
	if ins.Contradictions == nil {
		ins.Contradictions = []InsightContradiction{}
	}
	if ins.KPIs == nil {
		ins.KPIs = []InsightKPI{}
	}
	if ins.KeyQuotes == nil {
		ins.KeyQuotes = []InsightQuote{}
	}
}
