// Package intake validates application form posts before any side effect.
package intake

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/chiranSam/job-application-form/internal/models"
)

// Accepted CV media types
const (
	MediaTypePDF  = "application/pdf"
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// DefaultMaxUploadBytes caps CV uploads at 10 MiB
const DefaultMaxUploadBytes int64 = 10 << 20

// Form holds the text fields of an application
type Form struct {
	Name  string `form:"name" validate:"required,max=255"`
	Email string `form:"email" validate:"required,email"`
	Phone string `form:"phone" validate:"required,min=10,max=15"`
}

// Upload is the CV file as received
type Upload struct {
	Filename string
	Size     int64
	Data     []byte
}

// FieldError describes one rejected field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violation found in a submission
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// ByField groups messages by field name
func (e *ValidationError) ByField() map[string][]string {
	out := make(map[string][]string)
	for _, f := range e.Fields {
		out[f.Field] = append(out[f.Field], f.Message)
	}
	return out
}

// Validator checks forms against field rules and the CV allow-list
type Validator struct {
	validate     *validator.Validate
	maxBytes     int64
	allowedTypes []string
}

// NewValidator creates a validator with the given upload cap.
// A non-positive cap selects DefaultMaxUploadBytes.
func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(fld.Name)
		}
		return name
	})

	return &Validator{
		validate:     v,
		maxBytes:     maxBytes,
		allowedTypes: []string{MediaTypePDF, MediaTypeDOCX},
	}
}

// Validate returns a submission ready for the pipeline, or a *ValidationError
// listing every violation
func (v *Validator) Validate(form Form, upload *Upload) (models.Submission, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	form.Phone = strings.TrimSpace(form.Phone)

	var fieldErrs []FieldError

	if err := v.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return models.Submission{}, fmt.Errorf("failed to validate form: %w", err)
		}
		for _, fe := range verrs {
			fieldErrs = append(fieldErrs, FieldError{Field: fe.Field(), Message: message(fe)})
		}
	}

	mediaType, fileErrs := v.checkUpload(upload)
	fieldErrs = append(fieldErrs, fileErrs...)

	if len(fieldErrs) > 0 {
		return models.Submission{}, &ValidationError{Fields: fieldErrs}
	}

	return models.Submission{
		Name:      form.Name,
		Email:     form.Email,
		Phone:     form.Phone,
		Filename:  upload.Filename,
		MediaType: mediaType,
		Document:  upload.Data,
	}, nil
}

func (v *Validator) checkUpload(upload *Upload) (string, []FieldError) {
	if upload == nil || len(upload.Data) == 0 {
		return "", []FieldError{{Field: "cv", Message: "The cv field is required."}}
	}

	var errs []FieldError
	size := upload.Size
	if size < int64(len(upload.Data)) {
		size = int64(len(upload.Data))
	}
	if size > v.maxBytes {
		errs = append(errs, FieldError{Field: "cv", Message: v.OversizeMessage()})
	}

	detected := mimetype.Detect(upload.Data)
	mediaType := ""
	for _, allowed := range v.allowedTypes {
		if detected.Is(allowed) {
			mediaType = allowed
			break
		}
	}
	if mediaType == "" {
		errs = append(errs, FieldError{Field: "cv", Message: "The cv must be a file of type: pdf, docx."})
	}

	return mediaType, errs
}

// OversizeMessage is the cv error for uploads over the cap
func (v *Validator) OversizeMessage() string {
	return fmt.Sprintf("The cv must not be greater than %d kilobytes.", v.maxBytes/1024)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", fe.Field())
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", fe.Field())
	case "max":
		return fmt.Sprintf("The %s must not be greater than %s characters.", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("The %s must be at least %s characters.", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("The %s field is invalid.", fe.Field())
	}
}
