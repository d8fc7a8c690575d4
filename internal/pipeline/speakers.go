package pipeline

import (
	"regexp"
	"strconv"

	"github.com/DonTizi/vistral/models"
)

// The transcript carries diarization labels (e.g. speaker_1). Pass A may use
// different ids (speaker_0) and friendly names (Speaker 1) for the same
// people. BuildSpeakerMap reconciles them onto the transcript's labels so
// every downstream reference lands in one canonical identity space.
//
// Three passes, each only over still-unmatched entity speakers:
//  1. direct id match (the friendly name maps along with the id),
//  2. trailing-number match, absorbing off-by-one indexing between passes,
//  3. positional fallback in order of first appearance.
func BuildSpeakerMap(transcript []models.TranscriptSegment, speakers []models.EntitySpeaker) map[string]string {
	var transcriptSpeakers []string
	seen := map[string]bool{}
	for _, seg := range transcript {
		if !seen[seg.Speaker] {
			transcriptSpeakers = append(transcriptSpeakers, seg.Speaker)
			seen[seg.Speaker] = true
		}
	}

	speakerMap := map[string]string{}
	matched := map[string]bool{}

	// Pass 1: entity id already is a transcript label
	for _, sp := range speakers {
		if seen[sp.ID] {
			speakerMap[sp.ID] = sp.ID
			if sp.Name != "" && sp.Name != sp.ID {
				speakerMap[sp.Name] = sp.ID
			}
			matched[sp.ID] = true
		}
	}

	// Pass 2: match by trailing number
	transcriptByNum := map[int]string{}
	for _, label := range transcriptSpeakers {
		if num, ok := trailingNumber(label); ok {
			transcriptByNum[num] = label
		}
	}
	for _, sp := range speakers {
		if matched[sp.ID] {
			continue
		}
		num, ok := trailingNumber(sp.ID)
		if !ok {
			continue
		}
		label, ok := transcriptByNum[num]
		if !ok {
			continue
		}
		speakerMap[sp.ID] = label
		if sp.Name != "" && sp.Name != sp.ID {
			speakerMap[sp.Name] = label
		}
		matched[sp.ID] = true
	}

	// Pass 3: pair remaining speakers with remaining labels by appearance order
	used := map[string]bool{}
	for _, label := range speakerMap {
		used[label] = true
	}
	var unusedLabels []string
	for _, label := range transcriptSpeakers {
		if !used[label] {
			unusedLabels = append(unusedLabels, label)
		}
	}
	i := 0
	for _, sp := range speakers {
		if matched[sp.ID] || i >= len(unusedLabels) {
			continue
		}
		label := unusedLabels[i]
		i++
		speakerMap[sp.ID] = label
		if sp.Name != "" && sp.Name != sp.ID {
			speakerMap[sp.Name] = label
		}
	}

	return speakerMap
}

var trailingNumberRe = regexp.MustCompile(`(\d+)$`)

func trailingNumber(label string) (int, bool) {
	m := trailingNumberRe.FindStringSubmatch(label)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// canonical looks an identifier up in the map, passing unknown ones through
// unchanged. Already-canonical labels map to themselves, so applying a map
// twice is a no-op.
func canonical(speakerMap map[string]string, id string) string {
	if label, ok := speakerMap[id]; ok {
		return label
	}
	return id
}

func canonicalAll(speakerMap map[string]string, ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = canonical(speakerMap, id)
	}
	return out
}

// NormalizeEntities rewrites every speaker reference in Pass A output to the
// canonical transcript label.
func NormalizeEntities(entities *models.ExtractedEntities, speakerMap map[string]string) {
	for i := range entities.Speakers {
		entities.Speakers[i].ID = canonical(speakerMap, entities.Speakers[i].ID)
	}
	for i := range entities.Topics {
		entities.Topics[i].SpeakersInvolved = canonicalAll(speakerMap, entities.Topics[i].SpeakersInvolved)
	}
	for i := range entities.Claims {
		entities.Claims[i].SpeakerID = canonical(speakerMap, entities.Claims[i].SpeakerID)
	}
	for i := range entities.KPIs {
		entities.KPIs[i].MentionedBy = canonical(speakerMap, entities.KPIs[i].MentionedBy)
	}
	for i := range entities.ActionItemsRaw {
		entities.ActionItemsRaw[i].AssignedTo = canonical(speakerMap, entities.ActionItemsRaw[i].AssignedTo)
	}
	for i := range entities.DecisionsRaw {
		entities.DecisionsRaw[i].MadeBy = canonical(speakerMap, entities.DecisionsRaw[i].MadeBy)
	}
}

// NormalizeInsights rewrites every speaker reference in Pass B output to the
// canonical transcript label.
func NormalizeInsights(insights *models.Insights, speakerMap map[string]string) {
	for i := range insights.Topics {
		insights.Topics[i].SpeakersInvolved = canonicalAll(speakerMap, insights.Topics[i].SpeakersInvolved)
	}
	for i := range insights.ActionItems {
		insights.ActionItems[i].Assignee = canonical(speakerMap, insights.ActionItems[i].Assignee)
	}
	for i := range insights.Decisions {
		insights.Decisions[i].MadeBy = canonical(speakerMap, insights.Decisions[i].MadeBy)
	}
	for i := range insights.KeyQuotes {
		insights.KeyQuotes[i].Speaker = canonical(speakerMap, insights.KeyQuotes[i].Speaker)
	}
	for i := range insights.Contradictions {
		insights.Contradictions[i].ClaimA.Source = canonical(speakerMap, insights.Contradictions[i].ClaimA.Source)
		insights.Contradictions[i].ClaimB.Source = canonical(speakerMap, insights.Contradictions[i].ClaimB.Source)
	}
}
