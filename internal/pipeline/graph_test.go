package pipeline

import (
	"strings"
	"testing"

	"github.com/DonTizi/vistral/models"
)

func sampleTranscript() []models.TranscriptSegment {
	return []models.TranscriptSegment{
		{Speaker: "speaker_1", Text: "Welcome everyone, revenue grew 20 percent this quarter.", Start: 0, End: 15},
		{Speaker: "speaker_2", Text: "Let's look at the budget next.", Start: 15, End: 40},
		{Speaker: "speaker_1", Text: "We decided to hire two engineers.", Start: 40, End: 120},
	}
}

func sampleEntities() *models.ExtractedEntities {
	return &models.ExtractedEntities{
		Speakers: []models.EntitySpeaker{
			{ID: "speaker_1", Role: "CEO"},
			{ID: "speaker_2"},
		},
		Topics: []models.EntityTopic{
			{ID: "topic_0", Name: "Quarterly results", StartTime: 0, EndTime: 40, SpeakersInvolved: []string{"speaker_1"}},
			{ID: "topic_1", Name: "Hiring plan", StartTime: 40, SpeakersInvolved: []string{"speaker_1", "speaker_2"}},
		},
		Claims: []models.EntityClaim{
			{ID: "claim_0", Content: "revenue grew 20 percent", Timestamp: 5, SpeakerID: "speaker_1"},
		},
		KPIs: []models.EntityKPI{
			{ID: "kpi_0", Name: "Revenue growth", Value: "20%", Timestamp: 5, MentionedBy: "speaker_1"},
		},
		DecisionsRaw: []models.EntityDecision{
			{Description: "Hire two engineers", Timestamp: 45, MadeBy: "speaker_1"},
		},
	}
}

func sampleVisionEvents() []models.VisionEvent {
	return []models.VisionEvent{
		{FrameIndex: 0, Timestamp: 10, SlideTitle: "Q3 Results", OCRText: []string{"Revenue growth 15"}},
		{FrameIndex: 1, Timestamp: 50, OCRText: []string{"Hiring roadmap"}},
	}
}

func TestBuildGraphNodesAndMetadata(t *testing.T) {
	g := BuildGraph(sampleTranscript(), sampleVisionEvents(), sampleEntities(), 120, 60)

	want := map[string]int{
		"speaker": 2, "topic": 2, "claim": 1, "kpi": 1, "slide": 2, "decision": 1,
	}
	for typ, n := range want {
		if g.Metadata.NodeTypes[typ] != n {
			t.Fatalf("expected %d %s nodes, got %d", n, typ, g.Metadata.NodeTypes[typ])
		}
	}
	if g.Metadata.TotalNodes != len(g.Nodes) || g.Metadata.TotalEdges != len(g.Edges) {
		t.Fatalf("metadata counts disagree with the graph")
	}
	if g.Metadata.DurationSeconds != 120 {
		t.Fatalf("expected duration 120, got %v", g.Metadata.DurationSeconds)
	}
}

func TestBuildGraphHasNoDanglingEdges(t *testing.T) {
	g := BuildGraph(sampleTranscript(), sampleVisionEvents(), sampleEntities(), 120, 60)

	index := map[string]bool{}
	for _, n := range g.Nodes {
		index[n.ID] = true
	}
	for _, e := range g.Edges {
		if !index[e.Source] || !index[e.Target] {
			t.Fatalf("dangling edge %s --%s--> %s", e.Source, e.Relation, e.Target)
		}
	}
}

func TestBuildGraphOpenTopicExtendsToDuration(t *testing.T) {
	g := BuildGraph(sampleTranscript(), nil, sampleEntities(), 120, 60)

	for _, n := range g.Nodes {
		if n.ID == "topic_1" {
			if n.LastSeen != 120 {
				t.Fatalf("open-ended topic must extend to video end, got %v", n.LastSeen)
			}
			return
		}
	}
	t.Fatal("topic_1 missing from graph")
}

func TestBuildGraphSpeakerTimeRange(t *testing.T) {
	g := BuildGraph(sampleTranscript(), nil, sampleEntities(), 120, 60)

	for _, n := range g.Nodes {
		if n.ID == "speaker_1" {
			if n.FirstSeen != 0 || n.LastSeen != 120 {
				t.Fatalf("speaker_1 range [%v, %v], want [0, 120]", n.FirstSeen, n.LastSeen)
			}
			if n.Attributes.Speaker == nil || n.Attributes.Speaker.Role != "CEO" {
				t.Fatalf("speaker_1 role lost: %+v", n.Attributes)
			}
		}
		if n.ID == "speaker_2" {
			if n.Attributes.Speaker == nil || n.Attributes.Speaker.Role != "unknown" {
				t.Fatalf("missing role must default to unknown: %+v", n.Attributes)
			}
		}
	}
}

func TestDetectContradictionsRequiresSharedContext(t *testing.T) {
	entities := sampleEntities()

	// Slide 0 shows "Revenue growth 15" while the claim says 20 percent in
	// the same minute: a contradiction in a shared business context.
	g := BuildGraph(sampleTranscript(), sampleVisionEvents(), entities, 120, 60)

	var contradictions []models.GraphEdge
	for _, e := range g.Edges {
		if e.Relation == models.RelationContradicts {
			contradictions = append(contradictions, e)
		}
	}
	if len(contradictions) != 1 {
		t.Fatalf("expected exactly 1 contradicts edge, got %d", len(contradictions))
	}
	edge := contradictions[0]
	if edge.Source != "claim_0" || edge.Target != "slide_0" {
		t.Fatalf("contradiction between wrong nodes: %s -> %s", edge.Source, edge.Target)
	}
	if edge.Evidence.SourceType != "merged" {
		t.Fatalf("contradiction evidence must be merged, got %q", edge.Evidence.SourceType)
	}
	if !strings.HasPrefix(edge.Evidence.Quote, "Audio: ") || !strings.HasPrefix(edge.Evidence.Description, "Visual: ") {
		t.Fatalf("contradiction evidence must cite both channels: %+v", edge.Evidence)
	}
}

func TestDetectContradictionsSkipsWithoutKeyword(t *testing.T) {
	entities := sampleEntities()
	entities.Claims[0].Content = "we shipped 20 features"

	vision := []models.VisionEvent{
		{FrameIndex: 0, Timestamp: 10, OCRText: []string{"15 items delivered"}},
	}
	g := BuildGraph(sampleTranscript(), vision, entities, 120, 60)

	for _, e := range g.Edges {
		if e.Relation == models.RelationContradicts {
			t.Fatalf("numbers without a shared business keyword must not contradict: %+v", e)
		}
	}
}

func TestDetectContradictionsSkipsOutsideWindow(t *testing.T) {
	entities := sampleEntities()
	vision := []models.VisionEvent{
		{FrameIndex: 0, Timestamp: 100, OCRText: []string{"Revenue growth 15"}},
	}
	// Claim at t=5, slide at t=100: 95s apart, past the co-occurrence window.
	g := BuildGraph(sampleTranscript(), vision, entities, 120, 60)

	for _, e := range g.Edges {
		if e.Relation == models.RelationContradicts {
			t.Fatalf("contradiction found outside the time window: %+v", e)
		}
	}
}

func TestBuildTimelineSnapshots(t *testing.T) {
	g := BuildGraph(sampleTranscript(), sampleVisionEvents(), sampleEntities(), 120, 60)

	if len(g.Timeline) != 3 {
		t.Fatalf("expected snapshots at 0, 60, 120, got %d", len(g.Timeline))
	}
	for i, want := range []float64{0, 60, 120} {
		if g.Timeline[i].Timestamp != want {
			t.Fatalf("snapshot %d at %v, want %v", i, g.Timeline[i].Timestamp, want)
		}
	}

	// At t=60 topic_1 (started at 40) supersedes topic_0.
	if g.Timeline[1].CurrentTopic != "Hiring plan" {
		t.Fatalf("expected most recently started topic at t=60, got %q", g.Timeline[1].CurrentTopic)
	}
	// Before any edge timestamp has passed there are no active edges.
	for _, e := range g.Timeline[0].ActiveEdges {
		if e == "" {
			t.Fatalf("empty active edge entry")
		}
	}
}

func TestClipIsRuneSafe(t *testing.T) {
	s := "résumé réunion détaillée"
	clipped := clip(s, 10)
	if len([]rune(clipped)) != 10 {
		t.Fatalf("expected 10 runes, got %d", len([]rune(clipped)))
	}
}
