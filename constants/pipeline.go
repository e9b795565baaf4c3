package constants

// Pipeline tuning that the prompt and the export rely on. These are fixed, not configurable.
const (
	BatchSize     = 3    // pages per inference call
	MinBatchChars = 50   // trimmed batch text below this is noise
	USDToKRW      = 1400 // exchange rate quoted to the model
)

// DefaultModel is used when the caller does not name one.
const DefaultModel = "gemma3:27b"

// Section markers used by the segmenter.
const (
	MarkerSectionStartKO = "물품규격서"
	MarkerSectionStartEN = "Commodity Description"
	MarkerAppendix       = "별지"
	MarkerForm           = "서식"
	MarkerItemNameKO     = "품명"
	MarkerItemNameEN     = "Specifications"
)
