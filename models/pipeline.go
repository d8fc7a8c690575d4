package models

// FrameInfo identifies one extracted video frame. Immutable once extracted;
// frames are ordered by Index and Timestamp is monotonic non-decreasing.
type FrameInfo struct {
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
	Path      string  `json:"path"`
}

// TranscriptSegment is one diarized span of speech.
type TranscriptSegment struct {
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// VisionEvent is the visual analysis result for a single frame.
type VisionEvent struct {
	FrameIndex       int      `json:"frame_index"`
	Timestamp        float64  `json:"timestamp"`
	FramePath        string   `json:"frame_path"`
	OCRText          []string `json:"ocr_text"`
	SceneDescription string   `json:"scene_description"`
	SlideTitle       string   `json:"slide_title,omitempty"`
	Objects          []string `json:"objects"`
}

// EntitySpeaker is a speaker identified by Pass A reasoning. Its ID may not
// match the transcript's diarization labels; the reconciler maps it back.
type EntitySpeaker struct {
	ID               string   `json:"id"`
	Name             string   `json:"name,omitempty"`
	Role             string   `json:"role,omitempty"`
	KeyContributions []string `json:"key_contributions,omitempty"`
}

// EntityTopic is a discussion topic spanning a time range.
type EntityTopic struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	StartTime        float64  `json:"start_time"`
	EndTime          float64  `json:"end_time"`
	KeyPoints        []string `json:"key_points,omitempty"`
	SpeakersInvolved []string `json:"speakers_involved,omitempty"`
}

// EntityClaim is a factual assertion made in the audio track.
type EntityClaim struct {
	ID        string  `json:"id"`
	Content   string  `json:"content"`
	Type      string  `json:"type,omitempty"`
	Timestamp float64 `json:"timestamp"`
	SpeakerID string  `json:"speaker_id,omitempty"`
}

// EntityKPI is a named metric with its spoken value.
type EntityKPI struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Value       string  `json:"value,omitempty"`
	Context     string  `json:"context,omitempty"`
	Timestamp   float64 `json:"timestamp"`
	MentionedBy string  `json:"mentioned_by,omitempty"`
}

// EntityDecision is a raw decision captured during Pass A.
type EntityDecision struct {
	Description string  `json:"description"`
	Context     string  `json:"context,omitempty"`
	Timestamp   float64 `json:"timestamp"`
	MadeBy      string  `json:"made_by,omitempty"`
}

// EntityActionItem is a raw action item captured during Pass A.
type EntityActionItem struct {
	Description string  `json:"description"`
	Timestamp   float64 `json:"timestamp"`
	AssignedTo  string  `json:"assigned_to,omitempty"`
}

// ExtractedEntities is the full Pass A output.
type ExtractedEntities struct {
	Speakers       []EntitySpeaker    `json:"speakers"`
	Topics         []EntityTopic      `json:"topics"`
	Claims         []EntityClaim      `json:"claims"`
	KPIs           []EntityKPI        `json:"kpis"`
	DecisionsRaw   []EntityDecision   `json:"decisions_raw"`
	ActionItemsRaw []EntityActionItem `json:"action_items_raw"`
}
