package pipeline

import (
	"image"
	"image/color"

	"github.com/google/uuid"

	"reflow/internal/document"
)

// ThresholdPreprocessor binarizes pages around their mean luminance. It is a
// stand-in for a real denoise/deskew stage; anything implementing
// Preprocessor can replace it.
type ThresholdPreprocessor struct{}

func NewThresholdPreprocessor() *ThresholdPreprocessor {
	return &ThresholdPreprocessor{}
}

func (p *ThresholdPreprocessor) Process(img image.Image) image.Image {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	var sum uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			gray.SetGray(x, y, g)
			sum += uint64(g.Y)
		}
	}

	pixels := uint64(bounds.Dx() * bounds.Dy())
	if pixels == 0 {
		return gray
	}
	threshold := uint8(sum / pixels)

	for i, v := range gray.Pix {
		if v < threshold {
			gray.Pix[i] = 0
		} else {
			gray.Pix[i] = 255
		}
	}
	return gray
}

// BandLayoutAnalyzer groups contiguous inked rows into horizontal blocks.
// When nothing is detected the whole page becomes a single block, so the
// recognizer always has at least one region to work with.
type BandLayoutAnalyzer struct {
	// MinBandHeight filters out speckle rows.
	MinBandHeight int
	// InkFraction is the share of dark pixels a row needs to count as inked.
	InkFraction float64
}

func NewBandLayoutAnalyzer() *BandLayoutAnalyzer {
	return &BandLayoutAnalyzer{MinBandHeight: 8, InkFraction: 0.01}
}

func (a *BandLayoutAnalyzer) Analyze(img image.Image) []LayoutBlock {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	minInk := int(float64(width) * a.InkFraction)
	var blocks []LayoutBlock
	bandStart := -1
	for y := 0; y < height; y++ {
		ink := 0
		for x := 0; x < width; x++ {
			g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			if g.Y < 128 {
				ink++
			}
		}
		inked := ink > minInk
		switch {
		case inked && bandStart < 0:
			bandStart = y
		case !inked && bandStart >= 0:
			blocks = appendBand(blocks, bandStart, y, width, a.MinBandHeight)
			bandStart = -1
		}
	}
	if bandStart >= 0 {
		blocks = appendBand(blocks, bandStart, height, width, a.MinBandHeight)
	}

	if len(blocks) == 0 {
		blocks = []LayoutBlock{{
			ID:   uuid.NewString(),
			Type: document.BlockParagraph,
			BBox: []int{0, 0, width, height},
		}}
	}
	return blocks
}

func appendBand(blocks []LayoutBlock, start, end, width, minHeight int) []LayoutBlock {
	if end-start < minHeight {
		return blocks
	}
	return append(blocks, LayoutBlock{
		ID:   uuid.NewString(),
		Type: document.BlockParagraph,
		BBox: []int{0, start, width, end - start},
	})
}

// PlaceholderRecognizer produces placeholder spans when no text recognition
// engine is wired in, mirroring the block geometry so downstream consumers
// still see the detected layout.
type PlaceholderRecognizer struct{}

func NewPlaceholderRecognizer() *PlaceholderRecognizer {
	return &PlaceholderRecognizer{}
}

func (r *PlaceholderRecognizer) Recognize(img image.Image, block LayoutBlock) document.Block {
	span := document.Span{
		Text:       "Text recognition engine is not configured.",
		Confidence: 0,
		BBox:       append([]int(nil), block.BBox...),
	}
	return document.Block{
		ID:    block.ID,
		Type:  block.Type,
		BBox:  append([]int(nil), block.BBox...),
		Spans: []document.Span{span},
	}
}
