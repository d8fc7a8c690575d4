package pipeline

import (
	"reflect"
	"testing"

	"github.com/DonTizi/vistral/models"
)

func TestBuildSpeakerMapDirectMatch(t *testing.T) {
	transcript := []models.TranscriptSegment{
		{Speaker: "speaker_1", Start: 0, End: 10},
		{Speaker: "speaker_2", Start: 10, End: 20},
	}
	speakers := []models.EntitySpeaker{
		{ID: "speaker_1", Name: "Alice"},
		{ID: "speaker_2", Name: "Bob"},
	}

	m := BuildSpeakerMap(transcript, speakers)

	if m["speaker_1"] != "speaker_1" || m["speaker_2"] != "speaker_2" {
		t.Fatalf("direct ids must map to themselves: %v", m)
	}
	if m["Alice"] != "speaker_1" || m["Bob"] != "speaker_2" {
		t.Fatalf("friendly names must follow their ids: %v", m)
	}
}

func TestBuildSpeakerMapTrailingNumber(t *testing.T) {
	transcript := []models.TranscriptSegment{
		{Speaker: "speaker_1", Start: 0, End: 10},
		{Speaker: "speaker_2", Start: 10, End: 20},
	}
	// Pass A invented its own label scheme with the same numbering.
	speakers := []models.EntitySpeaker{
		{ID: "Speaker 1", Name: "CFO"},
		{ID: "Speaker 2"},
	}

	m := BuildSpeakerMap(transcript, speakers)

	if m["Speaker 1"] != "speaker_1" || m["Speaker 2"] != "speaker_2" {
		t.Fatalf("trailing-number match failed: %v", m)
	}
	if m["CFO"] != "speaker_1" {
		t.Fatalf("name must follow the trailing-number match: %v", m)
	}
}

func TestBuildSpeakerMapPositionalFallback(t *testing.T) {
	transcript := []models.TranscriptSegment{
		{Speaker: "speaker_1", Start: 0, End: 10},
		{Speaker: "speaker_2", Start: 10, End: 20},
	}
	speakers := []models.EntitySpeaker{
		{ID: "alice"},
		{ID: "bob"},
	}

	m := BuildSpeakerMap(transcript, speakers)

	if m["alice"] != "speaker_1" {
		t.Fatalf("first unmatched speaker must pair with first label: %v", m)
	}
	if m["bob"] != "speaker_2" {
		t.Fatalf("second unmatched speaker must pair with second label: %v", m)
	}
}

func TestBuildSpeakerMapNumericIDsWithoutNumericLabels(t *testing.T) {
	// Entity ids carry numbers but the transcript labels do not, so the
	// trailing-number pass finds nothing and position decides.
	transcript := []models.TranscriptSegment{
		{Speaker: "A", Start: 0, End: 10},
		{Speaker: "B", Start: 10, End: 20},
	}
	speakers := []models.EntitySpeaker{
		{ID: "spk_0"},
		{ID: "spk_1"},
	}

	m := BuildSpeakerMap(transcript, speakers)

	if m["spk_0"] != "A" || m["spk_1"] != "B" {
		t.Fatalf("positional fallback failed: %v", m)
	}
}

func TestBuildSpeakerMapMoreSpeakersThanLabels(t *testing.T) {
	transcript := []models.TranscriptSegment{
		{Speaker: "speaker_1", Start: 0, End: 10},
	}
	speakers := []models.EntitySpeaker{
		{ID: "alice"},
		{ID: "bob"},
	}

	m := BuildSpeakerMap(transcript, speakers)

	if m["alice"] != "speaker_1" {
		t.Fatalf("first speaker must still map: %v", m)
	}
	if _, ok := m["bob"]; ok {
		t.Fatalf("unmappable speaker must stay unmapped: %v", m)
	}
}

func TestNormalizeEntitiesIsIdempotent(t *testing.T) {
	transcript := []models.TranscriptSegment{
		{Speaker: "speaker_1", Start: 0, End: 10},
		{Speaker: "speaker_2", Start: 10, End: 20},
	}
	speakers := []models.EntitySpeaker{
		{ID: "speaker_0", Name: "Alice"},
		{ID: "speaker_1", Name: "Bob"},
	}
	m := BuildSpeakerMap(transcript, speakers)

	entities := &models.ExtractedEntities{
		Speakers: speakers,
		Topics: []models.EntityTopic{
			{ID: "topic_0", Name: "Q3 review", SpeakersInvolved: []string{"speaker_0", "Bob"}},
		},
		Claims: []models.EntityClaim{
			{ID: "claim_0", Content: "revenue is up", SpeakerID: "Alice"},
		},
		KPIs: []models.EntityKPI{
			{ID: "kpi_0", Name: "revenue", MentionedBy: "speaker_0"},
		},
		DecisionsRaw:   []models.EntityDecision{{Description: "ship it", MadeBy: "speaker_1"}},
		ActionItemsRaw: []models.EntityActionItem{{Description: "follow up", AssignedTo: "Bob"}},
	}

	NormalizeEntities(entities, m)
	onceTopics := append([]models.EntityTopic(nil), entities.Topics...)
	onceClaims := append([]models.EntityClaim(nil), entities.Claims...)
	onceKPIs := append([]models.EntityKPI(nil), entities.KPIs...)

	NormalizeEntities(entities, m)

	if !reflect.DeepEqual(onceClaims, entities.Claims) ||
		!reflect.DeepEqual(onceTopics, entities.Topics) ||
		!reflect.DeepEqual(onceKPIs, entities.KPIs) {
		t.Fatalf("second normalization changed the entities")
	}

	// speaker_1 is both an entity id (mapping elsewhere) and a transcript
	// label; canonical labels always win.
	for _, sp := range entities.Speakers {
		if sp.ID != "speaker_1" && sp.ID != "speaker_2" {
			t.Fatalf("speaker id %q not canonical", sp.ID)
		}
	}
}
