package extraction

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/vertexai/genai"

	"github.com/chiranSam/job-application-form/internal/models"
)

const transcribePrompt = `Transcribe every line of text in this document exactly as written.
Output one line of the document per line of output, in reading order.
Do not summarize, translate, reformat or add any commentary.`

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiExtractor transcribes stored documents with a Vertex AI model
type GeminiExtractor struct {
	client *genai.Client
	model  contentGenerator
}

// NewGeminiExtractor creates a new Vertex AI backed extractor
func NewGeminiExtractor(ctx context.Context, projectID, location, modelName string) (*GeminiExtractor, error) {
	if projectID == "" {
		return nil, errors.New("GOOGLE_CLOUD_PROJECT not set")
	}
	if location == "" {
		location = "us-central1"
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	// Transcription, not generation
	model.SetTemperature(0)
	model.SetTopK(1)
	model.SetMaxOutputTokens(8192)

	return &GeminiExtractor{client: client, model: model}, nil
}

// Extract asks the model for a verbatim transcription of the document at ref.URI
func (g *GeminiExtractor) Extract(ctx context.Context, ref models.DocumentRef) (string, error) {
	resp, err := g.model.GenerateContent(ctx,
		genai.FileData{MIMEType: ref.MediaType, FileURI: ref.URI},
		genai.Text(transcribePrompt),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response candidates returned")
	}

	var result string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			result += string(text)
		}
	}

	return JoinLines(LinesToBlocks(result)), nil
}

// Close closes the Vertex AI client
func (g *GeminiExtractor) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
