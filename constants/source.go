package constants

import (
	"strings"
)

// Source is the partner tag whose layout and mapping table apply to a document.
type Source string

const (
	SourceWholeFoods Source = "wholefoods"
	SourceUNFIWest   Source = "unfi_west"
	SourceUNFIEast   Source = "unfi_east"
	SourceUNFI       Source = "unfi"
	SourceKEHE       Source = "kehe"
	SourceDavidson   Source = "davidson"
	SourceVMC        Source = "vmc"
	SourceTKMaxx     Source = "tkmaxx"
)

var allSources = []Source{
	SourceWholeFoods,
	SourceUNFIWest,
	SourceUNFIEast,
	SourceUNFI,
	SourceKEHE,
	SourceDavidson,
	SourceVMC,
	SourceTKMaxx,
}

func SourcesAsStringSlice() []string {
	result := make([]string, len(allSources))
	for i, s := range allSources {
		result[i] = string(s)
	}
	return result
}

// CanonicalSource maps free-form partner names to a known Source.
func CanonicalSource(input string) (Source, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	// synonyms map
	synonyms := map[string]Source{
		"whole_foods":  SourceWholeFoods,
		"wfm":          SourceWholeFoods,
		"unfiwest":     SourceUNFIWest,
		"unfieast":     SourceUNFIEast,
		"kehe_sps":     SourceKEHE,
		"tk_maxx":      SourceTKMaxx,
		"tjx":          SourceTKMaxx,
		"davidson_sps": SourceDavidson,
		"vmc_sps":      SourceVMC,
	}

	if s, ok := synonyms[normalized]; ok {
		return s, true
	}

	for _, s := range allSources {
		if normalized == string(s) {
			return s, true
		}
	}

	return Source(normalized), false
}

var displayNames = map[Source]string{
	SourceWholeFoods: "Whole Foods",
	SourceUNFIWest:   "UNFI West",
	SourceUNFIEast:   "UNFI East",
	SourceUNFI:       "UNFI",
	SourceKEHE:       "KEHE - SPS",
	SourceDavidson:   "Davidson",
	SourceVMC:        "VMC",
	SourceTKMaxx:     "TK Maxx",
}

// DisplayName is the partner name shown on exported orders.
func (s Source) DisplayName() string {
	if n, ok := displayNames[s]; ok {
		return n
	}
	return string(s)
}
