package constants

// Stage names the pipeline step a document was in when it failed.
type Stage string

const (
	StageRead      Stage = "read"
	StageExtract   Stage = "extract"
	StageResolve   Stage = "resolve"
	StageNormalize Stage = "normalize"
	StageExport    Stage = "export"
)

// ConversionStatus is stored on conversion_history rows.
type ConversionStatus string

const (
	ConversionOK     ConversionStatus = "OK"
	ConversionFailed ConversionStatus = "FAILED"
)

// Confidence records which strategy tier produced a value.
type Confidence string

const (
	ConfidenceExact     Confidence = "exact"
	ConfidenceHeuristic Confidence = "heuristic"
	ConfidenceFallback  Confidence = "fallback"
)

// Rank orders confidences so the weakest field of a header can be reported.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceExact:
		return 3
	case ConfidenceHeuristic:
		return 2
	case ConfidenceFallback:
		return 1
	}
	return 0
}

var stages = []string{string(StageRead), string(StageExtract), string(StageResolve), string(StageNormalize), string(StageExport)}

// StagesAsStringSlice lists the pipeline stages in execution order.
func StagesAsStringSlice() []string {
	return append([]string(nil), stages...)
}
