package domain

// =============================================================================
// Quality Types
// =============================================================================

// QualityScore is the scorer's verdict for one document. Computed fresh on
// every call, never cached or mutated.
type QualityScore struct {
	Total     float64            `json:"total"`     // 0-100
	Breakdown map[string]float64 `json:"breakdown"` // sub-scores summing to Total
	Issues    []string           `json:"issues"`
	Passed    bool               `json:"passed"` // against the caller-supplied threshold
}

// Sub-score keys in QualityScore.Breakdown
const (
	ScoreSEO         = "seo"         // 0-30
	ScoreReadability = "readability" // 0-25
	ScoreStructure   = "structure"   // 0-20
	ScoreNaturalness = "naturalness" // 0-15
	ScoreDepth       = "depth"       // 0-10
)

// ContentBlock is one heading-delimited section of a document.
// Read-only once produced.
type ContentBlock struct {
	Heading string `json:"heading"` // possibly empty
	Level   int    `json:"level"`
	Body    string `json:"body"`
}

// =============================================================================
// Image Types
// =============================================================================

// ImageMeta is AI-declared metadata for one image slot in a document
type ImageMeta struct {
	Filename string `json:"filename"`
	AltText  string `json:"alt_text"`
	Caption  string `json:"caption"`
	Prompt   string `json:"prompt,omitempty"`
}

// ImageResult is one slot of an image generation fan-out: either bytes or a
// failure. Slots keep their declared position so reconciliation can
// re-establish a deterministic order regardless of completion order.
type ImageResult struct {
	Data []byte `json:"-"`
	Mime string `json:"mime,omitempty"`
	Err  error  `json:"-"`
}

// Failed reports whether this slot is a failure marker
func (r ImageResult) Failed() bool {
	return r.Err != nil || len(r.Data) == 0
}

// ImageUpload is one reconciled image ready for publishing.
// List order matches the order images should appear in the document.
type ImageUpload struct {
	Data     []byte `json:"-"`
	Filename string `json:"filename"`
	AltText  string `json:"alt_text"`
	Caption  string `json:"caption"`
}
