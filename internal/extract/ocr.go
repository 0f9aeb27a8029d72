package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// VisionDescriber is the slice of the LLM client the OCR path needs.
type VisionDescriber interface {
	DescribeImage(ctx context.Context, imageRef, prompt string) (string, error)
}

const ocrPrompt = "Transcribe all text visible in this image, preserving the reading order. " +
	"Reply with the transcribed text only. If there is no text, reply with an empty message."

// VisionOCR recognizes text in images by asking a vision model.
type VisionOCR struct {
	vision VisionDescriber
}

// NewVisionOCR wraps a vision-capable LLM client as an OCR implementation.
func NewVisionOCR(vision VisionDescriber) *VisionOCR {
	return &VisionOCR{vision: vision}
}

// Recognize sends the image as a data URI to the vision model and returns
// whatever text it transcribes.
func (o *VisionOCR) Recognize(ctx context.Context, mimeType string, data []byte) (string, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	text, err := o.vision.DescribeImage(ctx, dataURI, ocrPrompt)
	if err != nil {
		return "", fmt.Errorf("vision OCR: %w", err)
	}
	return strings.TrimSpace(text), nil
}
