package domain

import "time"

// StepType classifies one reasoning step.
type StepType string

const (
	StepThinking   StepType = "thinking"
	StepAnalysis   StepType = "analysis"
	StepReasoning  StepType = "reasoning"
	StepConclusion StepType = "conclusion"
)

// DetectedFormat names the channel a thinking chain was found through.
type DetectedFormat string

const (
	FormatXMLTag    DetectedFormat = "xml_tag"
	FormatJSONField DetectedFormat = "json_field"
	FormatMixed     DetectedFormat = "mixed"
	FormatNone      DetectedFormat = "none"
)

// ThinkingChainStep is immutable once created; slice order is reasoning order.
type ThinkingChainStep struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Type      StepType  `json:"type"`
}

// ThinkingChainContent is derived from raw reasoning text and replaced
// wholesale on re-detection. TotalSteps always equals len(Steps).
type ThinkingChainContent struct {
	Steps          []ThinkingChainStep `json:"steps"`
	Summary        string              `json:"summary"`
	TotalSteps     int                 `json:"totalSteps"`
	RawContent     string              `json:"rawContent"`
	DetectedFormat DetectedFormat      `json:"detectedFormat"`
}

// ThinkingDetection is the result of scanning text or a stream chunk.
type ThinkingDetection struct {
	HasThinkingChain bool
	ThinkingContent  string
	CleanContent     string
	Format           DetectedFormat
}
