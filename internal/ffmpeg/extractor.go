package ffmpeg

import (
	"context"

	"github.com/DonTizi/vistral/models"
)

// Extractor adapts the package functions to the pipeline's MediaExtractor
// interface.
type Extractor struct{}

func (Extractor) ExtractAudio(ctx context.Context, videoPath, outputDir string) (string, error) {
	return ExtractAudio(ctx, videoPath, outputDir)
}

func (Extractor) ExtractFrames(ctx context.Context, videoPath, outputDir string) ([]models.FrameInfo, error) {
	return ExtractFrames(ctx, videoPath, outputDir)
}
