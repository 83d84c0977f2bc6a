// Package api serves the application form and accepts submissions.
package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chiranSam/job-application-form/internal/intake"
	"github.com/chiranSam/job-application-form/internal/models"
	"github.com/chiranSam/job-application-form/internal/pipeline"
)

// User-facing outcomes. Internal failure detail only goes to the log.
const (
	MessageSuccess = "Your application has been submitted successfully!"
	MessageFailure = "Something went wrong while submitting your application. Please try again later."
	MessageInvalid = "The given data was invalid."
)

const (
	cvField = "cv"

	// maxFieldBytes bounds each text part; longer values fail validation anyway
	maxFieldBytes = 64 << 10

	// bodyAllowance is read and discarded past the upload cap so that fields
	// posted after an oversized file still reach the validator
	bodyAllowance = 32 << 20
)

//go:embed templates/form.html
var templateFS embed.FS

// Processor runs an accepted submission
type Processor interface {
	Process(ctx context.Context, sub models.Submission) (*pipeline.Report, error)
}

// Server handles HTTP requests
type Server struct {
	validator      *intake.Validator
	processor      Processor
	maxUploadBytes int64
	maxBodyBytes   int64
	log            logrus.FieldLogger
	form           *template.Template
	files          http.Handler
}

// formView is the data the form template renders
type formView struct {
	Old     intake.Form
	Errors  map[string][]string
	Success string
	Failure string
}

// NewServer creates a new API server
func NewServer(validator *intake.Validator, processor Processor, maxUploadBytes int64, log logrus.FieldLogger) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = intake.DefaultMaxUploadBytes
	}
	return &Server{
		validator:      validator,
		processor:      processor,
		maxUploadBytes: maxUploadBytes,
		maxBodyBytes:   maxUploadBytes + bodyAllowance,
		log:            log,
		form:           template.Must(template.ParseFS(templateFS, "templates/form.html")),
	}
}

// ServeFiles exposes documents under dir at /files/
func (s *Server) ServeFiles(dir string) {
	s.files = http.StripPrefix("/files/", http.FileServer(http.Dir(dir)))
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleForm)
	mux.HandleFunc("POST /submit-application", s.handleSubmit)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.files != nil {
		mux.Handle("GET /files/", s.files)
	}

	return s.loggingMiddleware(mux)
}

// handleForm renders the empty application form
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, formView{})
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// handleSubmit validates the form and runs the pipeline
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r.Context(), s.log)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	form, upload, tooLarge, err := s.readSubmission(r)
	if err != nil {
		log.WithError(err).Warn("Failed to read submission")
		s.respondError(w, r, http.StatusBadRequest, MessageFailure)
		return
	}

	sub, err := s.validator.Validate(form, upload)
	var verr *intake.ValidationError
	if err != nil && !errors.As(err, &verr) {
		log.WithError(err).Error("Validation could not run")
		s.respondError(w, r, http.StatusInternalServerError, MessageFailure)
		return
	}
	if verr != nil || tooLarge {
		errs := map[string][]string{}
		if verr != nil {
			errs = verr.ByField()
		}
		if tooLarge {
			errs[cvField] = []string{s.validator.OversizeMessage()}
		}
		s.respondInvalid(w, r, formView{Old: form, Errors: errs})
		return
	}

	report, err := s.processor.Process(r.Context(), sub)
	if err != nil {
		fields := logrus.Fields{}
		if report != nil {
			fields["submission_id"] = report.SubmissionID
			fields["document_key"] = report.Document.Key
		}
		log.WithFields(fields).WithError(err).Error("Application processing failed")
		s.respondError(w, r, http.StatusInternalServerError, MessageFailure)
		return
	}

	if wantsJSON(r) {
		s.respondJSON(w, http.StatusOK, map[string]string{
			"status":  "success",
			"message": MessageSuccess,
		})
		return
	}
	s.render(w, http.StatusOK, formView{Success: MessageSuccess})
}

// readSubmission streams the posted fields and the cv part. Text parts read
// before the body cap trips are kept, and tooLarge reports the trip.
// Bodies that are not multipart are read as a plain form without a file.
func (s *Server) readSubmission(r *http.Request) (form intake.Form, upload *intake.Upload, tooLarge bool, err error) {
	mr, err := r.MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		if err := r.ParseForm(); err != nil {
			return form, nil, isTooLarge(err), ignoreTooLarge(err)
		}
		form = intake.Form{
			Name:  r.PostForm.Get("name"),
			Email: r.PostForm.Get("email"),
			Phone: r.PostForm.Get("phone"),
		}
		return form, nil, false, nil
	}
	if err != nil {
		return form, nil, false, err
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return form, upload, false, nil
		}
		if err != nil {
			return form, upload, isTooLarge(err), ignoreTooLarge(err)
		}

		var counted *intake.Upload
		switch name := part.FormName(); name {
		case cvField:
			if upload != nil {
				break
			}
			upload = &intake.Upload{Filename: part.FileName()}
			counted = upload
			// One byte past the cap is enough for the validator to reject it
			upload.Data, err = io.ReadAll(io.LimitReader(part, s.maxUploadBytes+1))
			upload.Size = int64(len(upload.Data))
		case "name", "email", "phone":
			var value []byte
			value, err = io.ReadAll(io.LimitReader(part, maxFieldBytes))
			setField(&form, name, string(value))
		}
		if err == nil {
			var rest int64
			rest, err = io.Copy(io.Discard, part)
			if counted != nil {
				counted.Size += rest
			}
		}
		part.Close()
		if err != nil {
			return form, upload, isTooLarge(err), ignoreTooLarge(err)
		}
	}
}

// setField keeps the first value posted for each field
func setField(form *intake.Form, name, value string) {
	var dst *string
	switch name {
	case "name":
		dst = &form.Name
	case "email":
		dst = &form.Email
	case "phone":
		dst = &form.Phone
	}
	if dst != nil && *dst == "" {
		*dst = value
	}
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

func ignoreTooLarge(err error) error {
	if isTooLarge(err) {
		return nil
	}
	return err
}

func (s *Server) respondInvalid(w http.ResponseWriter, r *http.Request, view formView) {
	if wantsJSON(r) {
		s.respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"message": MessageInvalid,
			"errors":  view.Errors,
		})
		return
	}
	s.render(w, http.StatusUnprocessableEntity, view)
}

func (s *Server) render(w http.ResponseWriter, status int, view formView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.form.Execute(w, view); err != nil {
		s.log.WithError(err).Error("Failed to render form")
	}
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Error("Failed to encode JSON response")
	}
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if wantsJSON(r) {
		s.respondJSON(w, status, map[string]string{
			"error": message,
		})
		return
	}
	s.render(w, status, formView{Failure: message})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
