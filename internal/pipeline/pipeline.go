// Package pipeline runs an accepted application through its side effects:
// store the CV, extract and parse its text, append the record, notify the
// webhook and schedule the follow-up email.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chiranSam/job-application-form/internal/models"
	"github.com/chiranSam/job-application-form/internal/notify"
	"github.com/chiranSam/job-application-form/internal/parsing"
)

// Sentinel errors for the fatal stages
var (
	ErrStorageFailed = errors.New("document storage failed")
	ErrSinkFailed    = errors.New("record sink failed")
)

// DocumentStore persists the uploaded CV
type DocumentStore interface {
	Store(ctx context.Context, data []byte, mediaType, namespace, filename string) (models.DocumentRef, error)
}

// Extractor returns the text of a stored document
type Extractor interface {
	Extract(ctx context.Context, ref models.DocumentRef) (string, error)
}

// RecordSink appends one record per application
type RecordSink interface {
	Append(ctx context.Context, record models.Record) error
}

// Notifier delivers the webhook payload
type Notifier interface {
	Post(ctx context.Context, payload models.NotificationPayload) (notify.DeliveryOutcome, error)
}

// FollowUpScheduler arranges the deferred email
type FollowUpScheduler interface {
	Schedule(email, name string) (time.Time, error)
}

// Stage names
const (
	StageStore    = "store"
	StageFollowUp = "follow_up"
	StageExtract  = "extract"
	StageParse    = "parse"
	StageSink     = "sink"
	StageWebhook  = "webhook"
)

// Policy decides what a stage error does to the run
type Policy int

const (
	// Abort stops the run and fails the submission
	Abort Policy = iota
	// Degrade logs the error and carries on
	Degrade
)

// Outcome is the tagged result of one stage
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFatal    Outcome = "fatal"
	OutcomeSkipped  Outcome = "skipped"
)

// StageReport is what happened in one stage
type StageReport struct {
	Name     string        `json:"name"`
	Outcome  Outcome       `json:"outcome"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Report summarizes a run
type Report struct {
	SubmissionID string              `json:"submission_id"`
	Stages       []StageReport       `json:"stages"`
	Document     models.DocumentRef  `json:"document"`
	Fields       models.ParsedFields `json:"fields"`
	FollowUpAt   time.Time           `json:"follow_up_at"`
}

// Stage returns the report of the named stage
func (r *Report) Stage(name string) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageReport{}, false
}

// Options tune a Pipeline
type Options struct {
	Namespace     string
	WebhookStatus string
	Timeout       time.Duration
}

// state is the per-submission data the stages read and write. Stages in the
// same group write disjoint fields.
type state struct {
	sub        models.Submission
	ref        models.DocumentRef
	text       string
	fields     models.ParsedFields
	followUpAt time.Time
}

type stage struct {
	name     string
	policy   Policy
	sentinel error
	run      func(ctx context.Context, st *state) error
}

// Pipeline processes validated submissions
type Pipeline struct {
	store     DocumentStore
	extractor Extractor
	sink      RecordSink
	notifier  Notifier
	followUps FollowUpScheduler
	opts      Options
	log       logrus.FieldLogger
	now       func() time.Time

	groups [][]stage
}

// New wires a pipeline over its collaborators
func New(store DocumentStore, extractor Extractor, sink RecordSink, notifier Notifier, followUps FollowUpScheduler, opts Options, log logrus.FieldLogger) *Pipeline {
	if opts.Namespace == "" {
		opts.Namespace = "cv-documents"
	}

	p := &Pipeline{
		store:     store,
		extractor: extractor,
		sink:      sink,
		notifier:  notifier,
		followUps: followUps,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}

	p.groups = [][]stage{
		{
			{name: StageStore, policy: Abort, sentinel: ErrStorageFailed, run: p.storeDocument},
			{name: StageFollowUp, policy: Degrade, run: p.scheduleFollowUp},
		},
		{
			{name: StageExtract, policy: Degrade, run: p.extractText},
		},
		{
			{name: StageParse, policy: Degrade, run: p.parseText},
		},
		{
			{name: StageSink, policy: Abort, sentinel: ErrSinkFailed, run: p.appendRecord},
			{name: StageWebhook, policy: Degrade, run: p.postWebhook},
		},
	}
	return p
}

// Process runs every stage group in order. Stages within a group run
// concurrently. The run is detached from ctx cancellation and bounded by
// Options.Timeout. A fatal stage stops the run and its sentinel is returned.
func (p *Pipeline) Process(ctx context.Context, sub models.Submission) (*Report, error) {
	ctx = context.WithoutCancel(ctx)
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = p.now()
	}

	report := &Report{SubmissionID: uuid.NewString()}
	log := p.log.WithFields(logrus.Fields{
		"submission_id": report.SubmissionID,
		"email":         sub.Email,
	})

	st := &state{sub: sub, fields: models.EmptyFields()}
	var fatal error

	for _, group := range p.groups {
		if fatal != nil {
			for _, s := range group {
				report.Stages = append(report.Stages, StageReport{Name: s.name, Outcome: OutcomeSkipped})
			}
			continue
		}

		results := make([]StageReport, len(group))
		var g errgroup.Group
		for i, s := range group {
			g.Go(func() error {
				results[i] = p.runStage(ctx, s, st, log)
				if results[i].Outcome == OutcomeFatal {
					return fmt.Errorf("%w: %w", s.sentinel, results[i].Err)
				}
				return nil
			})
		}
		fatal = g.Wait()
		report.Stages = append(report.Stages, results...)
	}

	report.Document = st.ref
	report.Fields = st.fields
	report.FollowUpAt = st.followUpAt

	if fatal != nil {
		return report, fatal
	}
	log.WithField("document_key", st.ref.Key).Info("Application processed")
	return report, nil
}

func (p *Pipeline) runStage(ctx context.Context, s stage, st *state, log logrus.FieldLogger) StageReport {
	start := time.Now()
	err := s.run(ctx, st)
	rep := StageReport{Name: s.name, Outcome: OutcomeOK, Err: err, Duration: time.Since(start)}

	if err == nil {
		return rep
	}

	entry := log.WithFields(logrus.Fields{"stage": s.name, "duration": rep.Duration}).WithError(err)
	if s.policy == Abort {
		rep.Outcome = OutcomeFatal
		entry.Error("Stage failed")
	} else {
		rep.Outcome = OutcomeDegraded
		entry.Warn("Stage degraded")
	}
	return rep
}

func (p *Pipeline) storeDocument(ctx context.Context, st *state) error {
	ref, err := p.store.Store(ctx, st.sub.Document, st.sub.MediaType, p.opts.Namespace, st.sub.Filename)
	if err != nil {
		return err
	}
	st.ref = ref
	return nil
}

func (p *Pipeline) scheduleFollowUp(_ context.Context, st *state) error {
	at, err := p.followUps.Schedule(st.sub.Email, st.sub.Name)
	if err != nil {
		return err
	}
	st.followUpAt = at
	return nil
}

func (p *Pipeline) extractText(ctx context.Context, st *state) error {
	text, err := p.extractor.Extract(ctx, st.ref)
	if err != nil {
		st.text = ""
		return err
	}
	st.text = text
	return nil
}

func (p *Pipeline) parseText(_ context.Context, st *state) error {
	st.fields = parsing.Parse(st.text)
	return nil
}

func (p *Pipeline) appendRecord(ctx context.Context, st *state) error {
	return p.sink.Append(ctx, models.NewRecord(st.sub, st.fields, st.ref))
}

func (p *Pipeline) postWebhook(ctx context.Context, st *state) error {
	payload := models.NewNotificationPayload(st.fields, st.ref, p.opts.WebhookStatus, p.now())
	_, err := p.notifier.Post(ctx, payload)
	return err
}
