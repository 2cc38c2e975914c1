package planner

// ContentType is the kind of content an intent asks for.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentVoice ContentType = "voice"
	ContentVideo ContentType = "video"
	ContentMixed ContentType = "mixed"
)

// Complexity is the estimated difficulty of fulfilling an intent.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Urgency is how soon the user expects results.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// EnrichedIntent is a creative request after enrichment. The enrichment
// itself happens in the collab package (or its rule-based fallback); the
// planner only consumes the result.
type EnrichedIntent struct {
	ID                   string      `json:"id"`
	RawRequest           string      `json:"raw_request"`
	ContentType          ContentType `json:"content_type"`
	StylePreferences     []string    `json:"style_preferences,omitempty"`
	Complexity           Complexity  `json:"complexity"`
	Urgency              Urgency     `json:"urgency"`
	RefinedGoal          string      `json:"refined_goal,omitempty"`
	ContextualBackground string      `json:"contextual_background,omitempty"`
	TargetAudience       string      `json:"target_audience,omitempty"`
	SuccessCriteria      []string    `json:"success_criteria,omitempty"`
}

// requiredTagsFor maps a content type to the capability tags its primary
// generation task requires.
func requiredTagsFor(ct ContentType) []string {
	switch ct {
	case ContentText:
		return []string{"text_generation", "creative_writing"}
	case ContentImage:
		return []string{"image_generation", "visual_art"}
	case ContentVoice:
		return []string{"voice_synthesis", "audio_generation"}
	case ContentVideo:
		return []string{"video_generation", "animation"}
	default:
		return []string{"text_generation", "multimodal"}
	}
}

// baseDurationFor estimates how long a primary generation task takes per
// content type. Kept coarse on purpose; real latency comes from metadata.
func baseDurationFor(ct ContentType) int {
	switch ct {
	case ContentImage:
		return 20
	case ContentVoice:
		return 15
	case ContentVideo:
		return 60
	default:
		return 8
	}
}
