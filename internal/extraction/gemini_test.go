package extraction

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiranSam/job-application-form/internal/models"
)

type fakeGenerator struct {
	parts []genai.Part
	resp  *genai.GenerateContentResponse
	err   error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func textResponse(chunks ...string) *genai.GenerateContentResponse {
	parts := make([]genai.Part, len(chunks))
	for i, c := range chunks {
		parts[i] = genai.Text(c)
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

func TestGeminiExtractor(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("Jane\nDoe\n\n", "BSc in Computing\n")}
	g := &GeminiExtractor{model: gen}

	ref := models.DocumentRef{URI: "gs://cv-bucket/cv-documents/a.pdf", MediaType: "application/pdf"}
	text, err := g.Extract(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, "Jane\nDoe\nBSc in Computing\n", text)
	require.Len(t, gen.parts, 2)
	assert.Equal(t, genai.FileData{MIMEType: "application/pdf", FileURI: ref.URI}, gen.parts[0])
	assert.NoError(t, g.Close())
}

func TestGeminiExtractorErrors(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{name: "Request failed", gen: &fakeGenerator{err: errors.New("permission denied")}},
		{name: "No candidates", gen: &fakeGenerator{resp: &genai.GenerateContentResponse{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := (&GeminiExtractor{model: tt.gen}).Extract(context.Background(), models.DocumentRef{})
			assert.Error(t, err)
			assert.Empty(t, text)
		})
	}
}
