package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/chiranSam/job-application-form/internal/models"
)

const (
	featureDocumentText = "DOCUMENT_TEXT_DETECTION"
	outputBatchSize     = 20
)

// ErrUnsupportedMediaType is returned for documents the OCR service cannot read
var ErrUnsupportedMediaType = errors.New("media type not supported by OCR service")

// OutputReader lists and reads OCR result objects
type OutputReader interface {
	ReadPrefix(ctx context.Context, prefix string) ([][]byte, error)
}

// VisionRunner drives Cloud Vision asynchronous file annotation.
// Results land in bucket under outputPrefix and are read back with reader.
type VisionRunner struct {
	svc          *vision.Service
	reader       OutputReader
	bucket       string
	outputPrefix string

	mu      sync.Mutex
	outputs map[string]string
}

// RegionalEndpoint returns the Vision endpoint for region, or "" for the
// global endpoint
func RegionalEndpoint(region string) string {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" || region == "global" {
		return ""
	}
	return fmt.Sprintf("https://%s-vision.googleapis.com/", region)
}

// NewVisionService creates a Vision client bound to region
func NewVisionService(ctx context.Context, region string, opts ...option.ClientOption) (*vision.Service, error) {
	if endpoint := RegionalEndpoint(region); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vision client: %w", err)
	}
	return svc, nil
}

// NewVisionRunner creates a runner writing results to gs://bucket/outputPrefix
func NewVisionRunner(svc *vision.Service, reader OutputReader, bucket, outputPrefix string) *VisionRunner {
	return &VisionRunner{
		svc:          svc,
		reader:       reader,
		bucket:       bucket,
		outputPrefix: strings.Trim(outputPrefix, "/"),
		outputs:      make(map[string]string),
	}
}

// StartJob submits ref for text detection and returns the operation name
func (r *VisionRunner) StartJob(ctx context.Context, ref models.DocumentRef) (string, error) {
	if ref.MediaType != "application/pdf" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, ref.MediaType)
	}

	prefix := path.Join(r.outputPrefix, ref.Key) + "/"
	req := &vision.AsyncBatchAnnotateFilesRequest{
		Requests: []*vision.AsyncAnnotateFileRequest{{
			InputConfig: &vision.InputConfig{
				GcsSource: &vision.GcsSource{Uri: ref.URI},
				MimeType:  ref.MediaType,
			},
			Features: []*vision.Feature{{Type: featureDocumentText}},
			OutputConfig: &vision.OutputConfig{
				GcsDestination: &vision.GcsDestination{Uri: fmt.Sprintf("gs://%s/%s", r.bucket, prefix)},
				BatchSize:      outputBatchSize,
			},
		}},
	}

	op, err := r.svc.Files.AsyncBatchAnnotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to submit annotation request: %w", err)
	}
	if op.Name == "" {
		return "", errors.New("annotation request returned no operation name")
	}

	r.mu.Lock()
	r.outputs[op.Name] = prefix
	r.mu.Unlock()

	return op.Name, nil
}

// JobStatus polls the operation and, once done, reads its results
func (r *VisionRunner) JobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	op, err := r.svc.Operations.Get(jobID).Context(ctx).Do()
	if err != nil {
		return JobStatus{}, fmt.Errorf("failed to get operation %s: %w", jobID, err)
	}
	if !op.Done {
		return JobStatus{State: StateInProgress}, nil
	}

	r.mu.Lock()
	prefix, ok := r.outputs[jobID]
	delete(r.outputs, jobID)
	r.mu.Unlock()

	if op.Error != nil {
		return JobStatus{State: StateFailed}, nil
	}
	if !ok {
		return JobStatus{}, fmt.Errorf("no output location recorded for operation %s", jobID)
	}

	shards, err := r.reader.ReadPrefix(ctx, prefix)
	if err != nil {
		return JobStatus{}, fmt.Errorf("failed to read annotation output: %w", err)
	}
	return statusFromShards(shards)
}

// statusFromShards folds Vision output files into one status. Pages that
// carry an error downgrade the job to PARTIAL_SUCCESS, or FAILED when no
// page succeeded.
func statusFromShards(shards [][]byte) (JobStatus, error) {
	var blocks []Block
	succeeded, failed := 0, 0

	for _, shard := range shards {
		var resp vision.AnnotateFileResponse
		if err := json.Unmarshal(shard, &resp); err != nil {
			return JobStatus{}, fmt.Errorf("failed to decode annotation output: %w", err)
		}
		for _, page := range resp.Responses {
			if page == nil {
				continue
			}
			if page.Error != nil {
				failed++
				continue
			}
			succeeded++
			if page.FullTextAnnotation != nil {
				blocks = append(blocks, LinesToBlocks(page.FullTextAnnotation.Text)...)
			}
		}
	}

	switch {
	case failed > 0 && succeeded == 0:
		return JobStatus{State: StateFailed}, nil
	case failed > 0:
		return JobStatus{State: StatePartialSuccess, Blocks: blocks}, nil
	default:
		return JobStatus{State: StateSucceeded, Blocks: blocks}, nil
	}
}
