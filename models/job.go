package models

// JobStatus tracks the lifecycle of one processing job.
type JobStatus string

const (
	StatusUploading  JobStatus = "uploading"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
)

// ProgressEvent is one entry in the progress stream for a job. The stream is
// an ordered sequence terminated by a "complete" or "error" step.
type ProgressEvent struct {
	Step     string  `json:"step"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
	Ticker   bool    `json:"ticker,omitempty"`
}

// Result is the self-contained output document for a completed job.
type Result struct {
	JobID          string              `json:"job_id"`
	Status         JobStatus           `json:"status"`
	VideoURL       string              `json:"video_url"`
	Transcript     []TranscriptSegment `json:"transcript"`
	Graph          *KnowledgeGraph     `json:"graph"`
	Insights       *Insights           `json:"insights"`
	VisionEvents   []VisionEvent       `json:"vision_events"`
	ProcessingTime float64             `json:"processing_time"`
}
