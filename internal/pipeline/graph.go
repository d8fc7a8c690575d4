package pipeline

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/DonTizi/vistral/models"
)

// BuildGraph fuses the transcript, vision events, and Pass A entities into
// the temporal knowledge graph. Nodes are created for speakers, topics,
// claims, KPIs, slides, and decisions; edges carry timestamps, confidence,
// and evidence. Every edge endpoint is checked against the node index at
// creation time, so dangling references cannot occur.
func BuildGraph(
	transcript []models.TranscriptSegment,
	visionEvents []models.VisionEvent,
	entities *models.ExtractedEntities,
	duration float64,
	timelineInterval int,
) *models.KnowledgeGraph {
	var nodes []models.GraphNode
	var edges []models.GraphEdge
	nodeIndex := map[string]bool{}

	addNode := func(n models.GraphNode) {
		nodes = append(nodes, n)
		nodeIndex[n.ID] = true
	}

	// Speaker nodes
	for _, sp := range entities.Speakers {
		firstSeen, lastSeen := speakerTimeRange(transcript, sp.ID, sp.Name)
		role := sp.Role
		if role == "" {
			role = "unknown"
		}
		addNode(models.GraphNode{
			ID:        sp.ID,
			Type:      models.NodeSpeaker,
			Label:     sp.ID,
			FirstSeen: firstSeen,
			LastSeen:  lastSeen,
			Attributes: models.NodeAttributes{
				Speaker: &models.SpeakerAttrs{
					Role:             role,
					KeyContributions: sp.KeyContributions,
				},
			},
		})
	}

	// Topic nodes, with mentioned edges from each involved speaker
	for _, tp := range entities.Topics {
		end := tp.EndTime
		if end == 0 {
			end = duration
		}
		addNode(models.GraphNode{
			ID:        tp.ID,
			Type:      models.NodeTopic,
			Label:     tp.Name,
			FirstSeen: tp.StartTime,
			LastSeen:  end,
			Attributes: models.NodeAttributes{
				Topic: &models.TopicAttrs{
					KeyPoints:        tp.KeyPoints,
					SpeakersInvolved: tp.SpeakersInvolved,
				},
			},
		})

		for _, sid := range tp.SpeakersInvolved {
			if nodeIndex[sid] {
				edges = append(edges, models.GraphEdge{
					Source:     sid,
					Target:     tp.ID,
					Relation:   models.RelationMentioned,
					Timestamp:  tp.StartTime,
					Confidence: 0.85,
					Evidence:   models.Evidence{SourceType: "audio"},
				})
			}
		}
	}

	// Claim nodes, said_by the speaker when known
	for _, cl := range entities.Claims {
		claimType := cl.Type
		if claimType == "" {
			claimType = "factual"
		}
		addNode(models.GraphNode{
			ID:        cl.ID,
			Type:      models.NodeClaim,
			Label:     clip(cl.Content, 80),
			FirstSeen: cl.Timestamp,
			LastSeen:  cl.Timestamp,
			Attributes: models.NodeAttributes{
				Claim: &models.ClaimAttrs{Content: cl.Content, Type: claimType},
			},
		})

		if cl.SpeakerID != "" && nodeIndex[cl.SpeakerID] {
			edges = append(edges, models.GraphEdge{
				Source:     cl.ID,
				Target:     cl.SpeakerID,
				Relation:   models.RelationSaidBy,
				Timestamp:  cl.Timestamp,
				Confidence: 0.9,
				Evidence:   models.Evidence{SourceType: "audio", Quote: cl.Content},
			})
		}
	}

	// KPI nodes
	for _, kp := range entities.KPIs {
		value := kp.Value
		if value == "" {
			value = "N/A"
		}
		addNode(models.GraphNode{
			ID:        kp.ID,
			Type:      models.NodeKPI,
			Label:     fmt.Sprintf("%s: %s", kp.Name, value),
			FirstSeen: kp.Timestamp,
			LastSeen:  kp.Timestamp,
			Attributes: models.NodeAttributes{
				KPI: &models.KPIAttrs{Name: kp.Name, Value: kp.Value, Context: kp.Context},
			},
		})

		if kp.MentionedBy != "" && nodeIndex[kp.MentionedBy] {
			edges = append(edges, models.GraphEdge{
				Source:     kp.MentionedBy,
				Target:     kp.ID,
				Relation:   models.RelationMentioned,
				Timestamp:  kp.Timestamp,
				Confidence: 0.9,
				Evidence:   models.Evidence{SourceType: "audio", Quote: fmt.Sprintf("%s: %s", kp.Name, kp.Value)},
			})
		}
	}

	// Slide nodes from vision events that carry text
	for i, ve := range visionEvents {
		if ve.SlideTitle == "" && len(ve.OCRText) == 0 {
			continue
		}
		slideID := fmt.Sprintf("slide_%d", i)
		label := ve.SlideTitle
		if label == "" && len(ve.OCRText) > 0 {
			label = clip(ve.OCRText[0], 50)
		}
		if label == "" {
			label = fmt.Sprintf("Visual @%.0fs", ve.Timestamp)
		}
		addNode(models.GraphNode{
			ID:        slideID,
			Type:      models.NodeSlide,
			Label:     label,
			FirstSeen: ve.Timestamp,
			LastSeen:  ve.Timestamp,
			Attributes: models.NodeAttributes{
				Slide: &models.SlideAttrs{
					OCRText:          ve.OCRText,
					SceneDescription: ve.SceneDescription,
					FramePath:        ve.FramePath,
				},
			},
		})

		if topic := closestTopic(entities.Topics, ve.Timestamp); topic != nil && nodeIndex[topic.ID] {
			edges = append(edges, models.GraphEdge{
				Source:     topic.ID,
				Target:     slideID,
				Relation:   models.RelationShownDuring,
				Timestamp:  ve.Timestamp,
				Confidence: 0.85,
				Evidence: models.Evidence{
					SourceType:  "visual",
					Description: ve.SceneDescription,
					FramePath:   ve.FramePath,
				},
			})
		}
	}

	// Cross-reference audio claims against on-screen numbers
	edges = append(edges, detectContradictions(entities.Claims, visionEvents, nodeIndex)...)

	// Decision nodes
	for i, dec := range entities.DecisionsRaw {
		decID := fmt.Sprintf("decision_%d", i)
		addNode(models.GraphNode{
			ID:        decID,
			Type:      models.NodeDecision,
			Label:     clip(dec.Description, 80),
			FirstSeen: dec.Timestamp,
			LastSeen:  dec.Timestamp,
			Attributes: models.NodeAttributes{
				Decision: &models.DecisionAttrs{Context: dec.Context},
			},
		})

		if dec.MadeBy != "" && nodeIndex[dec.MadeBy] {
			edges = append(edges, models.GraphEdge{
				Source:     dec.MadeBy,
				Target:     decID,
				Relation:   models.RelationDecided,
				Timestamp:  dec.Timestamp,
				Confidence: 0.85,
				Evidence:   models.Evidence{SourceType: "audio"},
			})
		}
	}

	timeline := buildTimeline(nodes, edges, duration, timelineInterval)

	typeCounts := map[string]int{}
	for _, n := range nodes {
		typeCounts[string(n.Type)]++
	}

	return &models.KnowledgeGraph{
		Nodes:    nodes,
		Edges:    edges,
		Timeline: timeline,
		Metadata: models.GraphMetadata{
			DurationSeconds: duration,
			TotalNodes:      len(nodes),
			TotalEdges:      len(edges),
			NodeTypes:       typeCounts,
		},
	}
}

// speakerTimeRange scans the transcript for the earliest start and latest end
// of a speaker, matching by diarization label or entity id. Bounds stay zero
// when the speaker never appears.
func speakerTimeRange(transcript []models.TranscriptSegment, speakerID, name string) (float64, float64) {
	target := name
	if target == "" {
		target = speakerID
	}
	var first, last float64
	found := false
	for _, seg := range transcript {
		if seg.Speaker == target || seg.Speaker == speakerID {
			if !found {
				first = seg.Start
				found = true
			}
			last = seg.End
		}
	}
	return first, last
}

// closestTopic returns the topic whose time range contains the timestamp, or
// failing that the topic whose start time is numerically closest.
func closestTopic(topics []models.EntityTopic, timestamp float64) *models.EntityTopic {
	for i := range topics {
		end := topics[i].EndTime
		if end == 0 {
			end = math.Inf(1)
		}
		if topics[i].StartTime <= timestamp && timestamp <= end {
			return &topics[i]
		}
	}
	if len(topics) == 0 {
		return nil
	}
	best := 0
	for i := range topics {
		if math.Abs(topics[i].StartTime-timestamp) < math.Abs(topics[best].StartTime-timestamp) {
			best = i
		}
	}
	return &topics[best]
}

var numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// contradictionWindow is how far apart (seconds) an audio claim and a slide
// may be and still count as co-occurring.
const contradictionWindow = 60.0

// businessKeywords gates contradiction detection: both texts must share at
// least one of these terms before differing numbers count as a conflict.
var businessKeywords = map[string]bool{
	"revenue": true, "growth": true, "cost": true, "budget": true,
	"margin": true, "profit": true, "sales": true, "rate": true,
	"percent": true, "increase": true, "decrease": true,
	"headcount": true, "target": true,
}

// detectContradictions emits a contradicts edge when a claim's numbers differ
// from co-occurring slide OCR numbers in a shared business context. At most
// one edge per claim; precision over recall.
func detectContradictions(claims []models.EntityClaim, visionEvents []models.VisionEvent, nodeIndex map[string]bool) []models.GraphEdge {
	var edges []models.GraphEdge

	for _, claim := range claims {
		claimText := strings.ToLower(claim.Content)
		claimNumbers := numberRe.FindAllString(claimText, -1)
		if len(claimNumbers) == 0 {
			continue
		}

	events:
		for i, ve := range visionEvents {
			if math.Abs(ve.Timestamp-claim.Timestamp) > contradictionWindow {
				continue
			}

			ocrCombined := strings.ToLower(strings.Join(ve.OCRText, " "))
			ocrNumbers := numberRe.FindAllString(ocrCombined, -1)

			for _, cn := range claimNumbers {
				for _, on := range ocrNumbers {
					if cn == on || !sharedBusinessContext(claimText, ocrCombined) {
						continue
					}
					slideID := fmt.Sprintf("slide_%d", i)
					if !nodeIndex[claim.ID] || !nodeIndex[slideID] {
						continue
					}
					edges = append(edges, models.GraphEdge{
						Source:     claim.ID,
						Target:     slideID,
						Relation:   models.RelationContradicts,
						Timestamp:  claim.Timestamp,
						Confidence: 0.8,
						Evidence: models.Evidence{
							SourceType:  "merged",
							Quote:       "Audio: " + claim.Content,
							Description: "Visual: " + strings.Join(firstN(ve.OCRText, 3), " "),
						},
					})
					break events // one contradiction per claim is enough
				}
			}
		}
	}
	return edges
}

// sharedBusinessContext reports whether both texts contain at least one
// common term from the business keyword set.
func sharedBusinessContext(textA, textB string) bool {
	wordsB := map[string]bool{}
	for _, w := range strings.Fields(textB) {
		wordsB[w] = true
	}
	for _, w := range strings.Fields(textA) {
		if businessKeywords[w] && wordsB[w] {
			return true
		}
	}
	return false
}

// buildTimeline projects the graph onto periodic snapshots from 0 to the end
// of the video. A node is active when the tick falls inside its seen range;
// an edge is active once its timestamp has passed. The current topic and
// speaker are the most recently started active nodes of each type, ties
// broken by insertion order.
func buildTimeline(nodes []models.GraphNode, edges []models.GraphEdge, duration float64, interval int) []models.TimelineSnapshot {
	if interval <= 0 {
		interval = 60
	}
	var snapshots []models.TimelineSnapshot

	for ts := 0; ts <= int(duration); ts += interval {
		tick := float64(ts)
		activeNodes := []string{}
		var currentTopic, currentSpeaker string
		var topicStart, speakerStart float64 = -1, -1

		for _, n := range nodes {
			if n.FirstSeen <= tick && tick <= n.LastSeen {
				activeNodes = append(activeNodes, n.ID)
				switch n.Type {
				case models.NodeTopic:
					if n.FirstSeen >= topicStart {
						currentTopic = n.Label
						topicStart = n.FirstSeen
					}
				case models.NodeSpeaker:
					if n.FirstSeen >= speakerStart {
						currentSpeaker = n.Label
						speakerStart = n.FirstSeen
					}
				}
			}
		}

		activeEdges := []string{}
		for _, e := range edges {
			if e.Timestamp <= tick {
				activeEdges = append(activeEdges, e.Source+"->"+e.Target)
			}
		}

		snapshots = append(snapshots, models.TimelineSnapshot{
			Timestamp:      tick,
			ActiveNodes:    activeNodes,
			ActiveEdges:    activeEdges,
			CurrentTopic:   currentTopic,
			CurrentSpeaker: currentSpeaker,
		})
	}
	return snapshots
}

// clip truncates a string to max runes.
func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max])
	}
	return s
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
