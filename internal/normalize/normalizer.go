// Package normalize folds typed text, a voice recording and photos into one
// models.NormalizedInput. Each modality is attempted once; a failed modality is
// logged and dropped without aborting the others.
package normalize

import (
	"context"
	"strconv"
	"strings"

	"github.com/BerylCAtieno/unitydesk-api/internal/analyzer"
	"github.com/BerylCAtieno/unitydesk-api/internal/models"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
)

type RawInput struct {
	Text           string
	Audio          *models.Media
	Images         []models.Media
	Latitude       string
	Longitude      string
	ManualLocation string
	Ward           string
}

type Normalizer struct {
	transcriber analyzer.Transcriber
	describer   analyzer.ImageDescriber
	logger      *utils.Logger
}

func NewNormalizer(transcriber analyzer.Transcriber, describer analyzer.ImageDescriber, logger *utils.Logger) *Normalizer {
	return &Normalizer{
		transcriber: transcriber,
		describer:   describer,
		logger:      logger,
	}
}

func (n *Normalizer) Normalize(ctx context.Context, raw RawInput) *models.NormalizedInput {
	in := &models.NormalizedInput{
		TextContent:    CleanText(raw.Text),
		ManualLocation: strings.TrimSpace(raw.ManualLocation),
		Ward:           strings.TrimSpace(raw.Ward),
		Location:       ParseLocation(raw.Latitude, raw.Longitude),
	}

	if raw.Audio != nil && len(raw.Audio.Data) > 0 {
		transcript, err := n.transcriber.Transcribe(ctx, *raw.Audio)
		if err != nil {
			n.logger.Warn("Voice transcription failed, continuing without it", "error", err)
		} else {
			in.VoiceTranscript = CleanText(transcript)
			in.TextContent = joinText(in.TextContent, in.VoiceTranscript)
		}
	}

	in.ImageDescriptions = n.DescribeImages(ctx, raw.Images)

	return in
}

// DescribeImages describes each non-empty image in order, omitting failures.
func (n *Normalizer) DescribeImages(ctx context.Context, images []models.Media) []string {
	descriptions := make([]string, 0, len(images))
	for i, img := range images {
		if len(img.Data) == 0 {
			continue
		}
		desc, err := n.describer.DescribeImage(ctx, img)
		if err != nil {
			n.logger.Warn("Image description failed, skipping image", "index", i, "error", err)
			continue
		}
		descriptions = append(descriptions, desc)
	}
	return descriptions
}

// ParseLocation returns nil unless both coordinates parse and are in range.
func ParseLocation(lat, lng string) *models.GeoPoint {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return nil
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return nil
	}
	if la < -90 || la > 90 || lo < -180 || lo > 180 {
		return nil
	}
	return &models.GeoPoint{Lat: la, Lng: lo}
}

func joinText(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
