// README: Gemini-backed Analyzer (vision for photos, text for registration numbers).
package enrichment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	DefaultVisionModel = "gemini-2.0-flash"
	DefaultTextModel   = "gemini-2.0-flash"
)

// GeminiAnalyzer implements Analyzer with Google's Gemini models.
type GeminiAnalyzer struct {
	client *genai.Client
	vision *genai.GenerativeModel
	text   *genai.GenerativeModel
}

// NewGeminiAnalyzer creates a client for apiKey. Empty model names fall back
// to the defaults.
func NewGeminiAnalyzer(ctx context.Context, apiKey, visionModel, textModel string) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if visionModel == "" {
		visionModel = DefaultVisionModel
	}
	if textModel == "" {
		textModel = DefaultTextModel
	}

	vision := client.GenerativeModel(visionModel)
	vision.SetTemperature(0.2)

	text := client.GenerativeModel(textModel)
	text.SetTemperature(0.1)
	text.SetMaxOutputTokens(32)

	return &GeminiAnalyzer{client: client, vision: vision, text: text}, nil
}

func (g *GeminiAnalyzer) Close() error {
	return g.client.Close()
}

func (g *GeminiAnalyzer) AnalyzeImage(ctx context.Context, img Image) (string, error) {
	format := imageFormat(img.MIMEType)
	resp, err := g.vision.GenerateContent(ctx, genai.Text(imagePrompt), genai.ImageData(format, img.Data))
	if err != nil {
		return "", fmt.Errorf("gemini vision error: %w", err)
	}
	return responseText(resp)
}

func (g *GeminiAnalyzer) EstimateAge(ctx context.Context, vehicleNumber string) (string, error) {
	resp, err := g.text.GenerateContent(ctx, genai.Text(agePrompt(vehicleNumber)))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates from Gemini")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// imageFormat maps "image/png" to "png"; genai.ImageData wants the subtype.
func imageFormat(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if sub, ok := strings.CutPrefix(mimeType, "image/"); ok && sub != "" {
		return sub
	}
	return "jpeg"
}
