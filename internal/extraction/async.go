// Package extraction turns stored CV documents into plain text.
//
// Every backend satisfies the same contract: Extract returns the recognized
// text, one line per recognized line, or an error. Callers treat an error as
// "no text" and carry on.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/chiranSam/job-application-form/internal/models"
)

// Job states reported by a JobRunner
const (
	StateInProgress     = "IN_PROGRESS"
	StateSucceeded      = "SUCCEEDED"
	StateFailed         = "FAILED"
	StatePartialSuccess = "PARTIAL_SUCCESS"
)

// BlockLine marks a block holding one recognized line of text
const BlockLine = "LINE"

var (
	// ErrJobFailed is returned when a job ends in any state but SUCCEEDED
	ErrJobFailed = errors.New("extraction job did not succeed")

	errStillRunning = errors.New("extraction job still running")
)

// Block is one recognized unit of a document
type Block struct {
	Type string
	Text string
}

// JobStatus is a snapshot of an asynchronous extraction job
type JobStatus struct {
	State  string
	Blocks []Block
}

// Terminal reports whether the job has stopped
func (s JobStatus) Terminal() bool {
	switch s.State {
	case StateSucceeded, StateFailed, StatePartialSuccess:
		return true
	}
	return false
}

// JobRunner starts and inspects OCR jobs on a remote service
type JobRunner interface {
	StartJob(ctx context.Context, ref models.DocumentRef) (string, error)
	JobStatus(ctx context.Context, jobID string) (JobStatus, error)
}

// PollPolicy bounds how a job is polled. Zero MaxWait or MaxPolls means no
// limit on that axis.
type PollPolicy struct {
	Interval time.Duration
	MaxWait  time.Duration
	MaxPolls uint64
}

// DefaultPollPolicy polls every 5 seconds for up to 5 minutes
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Interval: 5 * time.Second, MaxWait: 5 * time.Minute}
}

func (p PollPolicy) backoff() retry.Backoff {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollPolicy().Interval
	}
	b := retry.NewConstant(interval)
	if p.MaxPolls > 0 {
		b = retry.WithMaxRetries(p.MaxPolls-1, b)
	}
	if p.MaxWait > 0 {
		b = retry.WithMaxDuration(p.MaxWait, b)
	}
	return b
}

// AsyncExtractor submits a job and polls it to completion
type AsyncExtractor struct {
	runner JobRunner
	policy PollPolicy
	log    logrus.FieldLogger
}

// NewAsyncExtractor creates an extractor over runner
func NewAsyncExtractor(runner JobRunner, policy PollPolicy, log logrus.FieldLogger) *AsyncExtractor {
	return &AsyncExtractor{runner: runner, policy: policy, log: log}
}

// Extract runs one job for ref and returns its LINE blocks as text
func (e *AsyncExtractor) Extract(ctx context.Context, ref models.DocumentRef) (string, error) {
	jobID, err := e.runner.StartJob(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to start extraction job: %w", err)
	}

	log := e.log.WithFields(logrus.Fields{"job_id": jobID, "document_key": ref.Key})
	log.Debug("Extraction job started")

	polls := 0
	var status JobStatus
	err = retry.Do(ctx, e.policy.backoff(), func(ctx context.Context) error {
		polls++
		s, err := e.runner.JobStatus(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to get job status: %w", err)
		}
		if !s.Terminal() {
			return retry.RetryableError(errStillRunning)
		}
		status = s
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("extraction job %s: %w", jobID, err)
	}

	log.WithFields(logrus.Fields{"state": status.State, "polls": polls}).Debug("Extraction job finished")

	if status.State != StateSucceeded {
		return "", fmt.Errorf("%w: job %s ended in %s", ErrJobFailed, jobID, status.State)
	}
	return JoinLines(status.Blocks), nil
}

// JoinLines concatenates LINE blocks in order, each followed by a newline
func JoinLines(blocks []Block) string {
	var b strings.Builder
	for _, block := range blocks {
		if block.Type != BlockLine {
			continue
		}
		b.WriteString(block.Text)
		b.WriteString(models.LineDelimiter)
	}
	return b.String()
}

// LinesToBlocks splits text into LINE blocks, dropping blank lines
func LinesToBlocks(text string) []Block {
	var blocks []Block
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		blocks = append(blocks, Block{Type: BlockLine, Text: line})
	}
	return blocks
}
