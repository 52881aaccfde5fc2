package models

// ImageMetrics holds the raw quality measurements for a source image.
type ImageMetrics struct {
	Sharpness       float64 `json:"sharpness"`
	Contrast        float64 `json:"contrast"`
	Brightness      float64 `json:"brightness"`
	NoiseLevel      float64 `json:"noise_level"`
	TextRegionCount int     `json:"text_region_count"`
}

// ImageQuality is the derived quality assessment of a source image.
// It is recomputed on demand and never persisted as authoritative state.
type ImageQuality struct {
	OverallScore float64      `json:"overall_score"` // 0-100
	Grade        string       `json:"grade"`         // A/B/C/D/F
	Description  string       `json:"description"`
	Metrics      ImageMetrics `json:"metrics"`
}

// Orientation detection methods.
const (
	OrientationMethodProjection = "projection"
	OrientationMethodHough      = "hough"
	OrientationMethodNone       = "none"
	OrientationMethodError      = "error"
)

// ImageOrientation is the derived orientation estimate of a source image.
type ImageOrientation struct {
	Angle               float64 `json:"angle"` // degrees
	NeedsRotation       bool    `json:"needs_rotation"`
	RecommendedRotation float64 `json:"recommended_rotation"`
	Method              string  `json:"detection_method"`
}

// TextQuality buckets raw extracted text by how corrupted it looks.
type TextQuality string

// Text quality buckets. The bucket routes which prompt template
// classification uses; corrupted text is still classified.
const (
	TextGood      TextQuality = "good"
	TextPoor      TextQuality = "poor"
	TextCorrupted TextQuality = "corrupted"
)

// TextQualityReport carries the bucket plus the triggered corruption signals.
type TextQualityReport struct {
	Quality TextQuality `json:"quality"`
	Score   int         `json:"score"` // count of triggered signals
	Signals []string    `json:"signals,omitempty"`
}
