package engine

// Rendition defines the target parameters for one quality level.
type Rendition struct {
	Label            string
	Height           int
	VideoBitrateKbps int
	AudioBitrateKbps int
}

// DefaultLadder is the static rendition table, ordered by descending
// target height.
var DefaultLadder = []Rendition{
	{"1080p", 1080, 5000, 192},
	{"720p", 720, 2500, 128},
	{"480p", 480, 1000, 96},
	{"360p", 360, 600, 96},
}

// SelectRenditions returns every ladder entry whose target height does not
// exceed the source height. No upscaling: a source shorter than the whole
// ladder selects nothing. A zero source height means the height is unknown
// and imposes no ceiling.
func SelectRenditions(ladder []Rendition, sourceHeight int) []Rendition {
	if sourceHeight <= 0 {
		return append([]Rendition(nil), ladder...)
	}

	var selected []Rendition
	for _, r := range ladder {
		if r.Height <= sourceHeight {
			selected = append(selected, r)
		}
	}
	return selected
}

// RenditionByLabel returns the ladder entry matching the given label, or
// nil if not found.
func RenditionByLabel(ladder []Rendition, label string) *Rendition {
	for i := range ladder {
		if ladder[i].Label == label {
			return &ladder[i]
		}
	}
	return nil
}
