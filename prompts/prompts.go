// Package prompts holds the prompt templates sent to the Mistral models.
package prompts

import "fmt"

const visionTemplate = `You are analyzing %d frames extracted from a business video (meeting, interview, or presentation).

For each frame, extract:
1. **OCR text**: All readable text (slides, whiteboards, screen shares, captions)
2. **Scene description**: Brief description of what's visible (people, setting, presentation)
3. **Slide title**: If a presentation slide is visible, its title
4. **Objects**: Notable objects or visual elements (charts, graphs, diagrams, products)

Frames in order:
%s

Return a JSON object with this exact structure:
{
  "frames": [
    {
      "frame_number": 1,
      "ocr_text": ["line 1 of text", "line 2 of text"],
      "scene_description": "A presenter showing a slide about Q3 revenue",
      "slide_title": "Q3 Revenue Overview",
      "objects": ["bar chart", "company logo"]
    }
  ]
}

Rules:
- Return one entry per frame, in order
- If no text is visible, set ocr_text to empty array
- If no slide is visible, set slide_title to null
- Be precise with numbers and text — OCR accuracy matters
- Keep scene descriptions concise (one sentence)`

// Vision renders the batched frame analysis prompt.
func Vision(numFrames int, frameList string) string {
	return fmt.Sprintf(visionTemplate, numFrames, frameList)
}

const passATemplate = `You are analyzing a meeting/interview transcript to extract structured entities.

TASK: Extract all entities and segment the conversation into topics.

TRANSCRIPT:
%s

Extract the following and return as JSON:

{
  "speakers": [
    {
      "id": "speaker_0",
      "name": "Speaker A",
      "role": "inferred role or unknown",
      "key_contributions": ["brief point 1", "brief point 2"]
    }
  ],
  "topics": [
    {
      "id": "topic_0",
      "name": "Topic name",
      "start_time": 0.0,
      "end_time": 120.0,
      "key_points": ["point 1", "point 2"],
      "speakers_involved": ["speaker_0", "speaker_1"]
    }
  ],
  "claims": [
    {
      "id": "claim_0",
      "speaker_id": "speaker_0",
      "content": "The exact claim made",
      "timestamp": 45.2,
      "type": "factual"
    }
  ],
  "kpis": [
    {
      "id": "kpi_0",
      "name": "Revenue Growth",
      "value": "18%%",
      "mentioned_by": "speaker_0",
      "timestamp": 45.2,
      "context": "Q3 year-over-year growth"
    }
  ],
  "action_items_raw": [
    {
      "description": "What needs to be done",
      "assigned_to": "speaker_1",
      "timestamp": 200.0
    }
  ],
  "decisions_raw": [
    {
      "description": "What was decided",
      "made_by": "speaker_0",
      "timestamp": 245.0,
      "context": "During budget discussion"
    }
  ]
}

Rules:
- Assign speaker IDs consistently (speaker_0, speaker_1, etc.) matching the transcript labels
- Try to infer real names if speakers address each other by name
- Every claim must have a timestamp from the transcript
- KPIs are quantitative metrics mentioned (revenue, growth rates, costs, headcount, etc.)
- Be exhaustive — extract ALL entities, not just the obvious ones
- Topic segmentation should cover the entire transcript with no gaps`

// PassA renders the entity extraction prompt over a formatted transcript.
func PassA(transcript string) string {
	return fmt.Sprintf(passATemplate, transcript)
}

const passBTemplate = `You are a business intelligence analyst reasoning over a Temporal Knowledge Graph extracted from a video.

TASK: Analyze this knowledge graph and produce actionable insights with evidence chains.

KNOWLEDGE GRAPH:
%s

Produce a JSON response with this structure:

{
  "summary": "2-3 sentence executive summary of the entire video content",
  "topics": [
    {
      "name": "Topic name",
      "start_time": 30.0,
      "end_time": 180.0,
      "key_points": ["point 1", "point 2", "point 3"],
      "speakers_involved": ["Speaker A", "Speaker B"],
      "evidence": [
        {"timestamp": 32.5, "source": "audio", "quote": "exact quote from transcript"},
        {"timestamp": 35.0, "source": "visual", "description": "Slide showing X"}
      ]
    }
  ],
  "action_items": [
    {
      "description": "Clear, actionable task description",
      "assignee": "Speaker name",
      "priority": "high",
      "evidence": [
        {"timestamp": 145.2, "source": "audio", "quote": "exact quote"}
      ]
    }
  ],
  "decisions": [
    {
      "description": "What was decided",
      "made_by": "Speaker name",
      "timestamp": 245.0,
      "context": "Context around the decision",
      "evidence": [
        {"timestamp": 245.0, "source": "audio", "quote": "exact quote"}
      ]
    }
  ],
  "contradictions": [
    {
      "description": "Brief description of the contradiction",
      "claim_a": {
        "source": "Speaker name",
        "quote": "What they said",
        "timestamp": 45.2,
        "source_type": "audio"
      },
      "claim_b": {
        "source": "Slide 3",
        "quote": "What the slide shows",
        "timestamp": 43.0,
        "source_type": "visual"
      },
      "explanation": "Why these two claims conflict",
      "severity": "high"
    }
  ],
  "kpis": [
    {
      "name": "KPI name",
      "value": "value with unit",
      "context": "What this KPI represents",
      "mentioned_by": "Speaker name",
      "timestamp": 45.2,
      "evidence": [
        {"timestamp": 45.2, "source": "audio", "quote": "exact quote"}
      ]
    }
  ],
  "key_quotes": [
    {
      "speaker": "Speaker name",
      "quote": "Notable or important quote",
      "timestamp": 120.0,
      "context": "Why this quote matters"
    }
  ]
}

Rules:
- Every insight MUST have at least one evidence entry with timestamp and source
- Contradictions compare audio claims vs visual claims, or conflicting statements by different speakers
- Priority for action items: high = explicitly assigned with urgency, medium = discussed, low = implied
- KPIs must be quantitative (numbers, percentages, amounts)
- Key quotes should be the most impactful or decision-defining moments
- Be precise with timestamps — they must match the graph data
- If no contradictions are found, return an empty array (don't fabricate them)`

// PassB renders the insight extraction prompt over a serialized graph.
func PassB(graph string) string {
	return fmt.Sprintf(passBTemplate, graph)
}
