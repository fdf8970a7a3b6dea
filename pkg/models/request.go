package models

const (
	ModeTopic    = "topic"
	ModeKeywords = "keywords"
	ModeTrends   = "trends"
	ModeSpin     = "spin"
)

// DefaultWordCount is the article length used when a request does not
// specify one.
const DefaultWordCount = 1200

// TrendSpec carries the context of a trending topic for trends-mode generation.
type TrendSpec struct {
	Topic          string   `json:"topic"`
	URL            string   `json:"url,omitempty"`
	Description    string   `json:"description,omitempty"`
	Source         string   `json:"source,omitempty"`
	RelatedQueries []string `json:"related_queries,omitempty"`
	Region         string   `json:"region,omitempty"`
}

// GenerationRequest holds everything needed to reproduce a generation call.
// It is an immutable value once the owning job is created.
type GenerationRequest struct {
	Mode string `json:"mode"`

	// Mode-specific inputs.
	Topic         string     `json:"topic,omitempty"`
	Keywords      []string   `json:"keywords,omitempty"`
	Trend         *TrendSpec `json:"trend,omitempty"`
	SpinSource    string     `json:"spin_source,omitempty"`
	SpinAngle     string     `json:"spin_angle,omitempty"`
	SpinIntensity string     `json:"spin_intensity,omitempty"`

	// Shared generation parameters.
	WordCount        int    `json:"word_count"`
	Tone             string `json:"tone"`
	KeywordDensity   string `json:"keyword_density,omitempty"`
	ContentStructure string `json:"content_structure,omitempty"`
	SEOOptimization  bool   `json:"seo_optimization"`
	UseWebSearch     bool   `json:"use_web_search"`

	// Topics is the resolved unit list for bulk jobs; empty for single jobs.
	Topics []string `json:"topics,omitempty"`
}

// UnitRequest derives the single-unit request for one topic of a bulk job.
// Spin-mode units compose the shared spin angle with the per-unit variation,
// so each unit rewrites the same source from a different angle.
func (r GenerationRequest) UnitRequest(topic string) GenerationRequest {
	unit := r
	unit.Topics = nil
	unit.Topic = topic
	if r.Mode == ModeSpin {
		angle := r.SpinAngle
		if angle == "" {
			angle = "fresh perspective"
		}
		unit.SpinAngle = angle + " - " + topic
	}
	return unit
}
