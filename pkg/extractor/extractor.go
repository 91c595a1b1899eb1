package extractor

import "context"

// ImageExtractor turns an image reference into descriptive text.
type ImageExtractor interface {
	ExtractImage(ctx context.Context, imageRef string, hint string) (string, error)
}

// SummaryExtractor condenses chunk text into a short summary.
type SummaryExtractor interface {
	ExtractSummary(ctx context.Context, text string) (string, error)
}
