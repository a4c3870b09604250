package models

// GeoPoint is a parsed coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NormalizedInput is the single text representation every AI stage consumes,
// whatever mix of photo, voice and text the citizen submitted.
type NormalizedInput struct {
	TextContent       string
	ImageDescriptions []string
	VoiceTranscript   string
	Location          *GeoPoint
	ManualLocation    string
	Ward              string
}

// HasContent reports whether there is anything for the pipeline to look at.
func (n *NormalizedInput) HasContent() bool {
	return n.TextContent != "" || len(n.ImageDescriptions) > 0 || n.VoiceTranscript != ""
}
