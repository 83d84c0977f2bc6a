package models

import (
	"strings"
	"time"
)

// Placeholder is stored whenever a field cannot be derived from the CV text
const Placeholder = "N/A"

// Join delimiters used by the parser and undone when building payloads
const (
	LineDelimiter  = "\n"
	SkillDelimiter = ", "
)

// Submission is one validated application form post
type Submission struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Filename    string    `json:"filename"`
	MediaType   string    `json:"media_type"`
	Document    []byte    `json:"-"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// DocumentRef points at a CV persisted in the document store
type DocumentRef struct {
	Key       string `json:"key"`
	URL       string `json:"url"` // publicly resolvable link
	URI       string `json:"uri"` // storage locator (gs:// or local path)
	MediaType string `json:"media_type"`
}

// ParsedFields holds the candidate fields derived from CV text
type ParsedFields struct {
	Name      string `json:"name"`
	JobTitle  string `json:"job_title"`
	Degree    string `json:"degree"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Education string `json:"education"`
	Skills    string `json:"skills"`
	Projects  string `json:"projects"`
}

// EmptyFields returns a ParsedFields with every value set to Placeholder
func EmptyFields() ParsedFields {
	return ParsedFields{
		Name:      Placeholder,
		JobTitle:  Placeholder,
		Degree:    Placeholder,
		Phone:     Placeholder,
		Email:     Placeholder,
		Education: Placeholder,
		Skills:    Placeholder,
		Projects:  Placeholder,
	}
}

// Map returns the fields keyed by their display names. All eight keys are always present.
func (p ParsedFields) Map() map[string]string {
	return map[string]string{
		"Name":      p.Name,
		"Job Title": p.JobTitle,
		"Degree":    p.Degree,
		"Phone":     p.Phone,
		"Email":     p.Email,
		"Education": p.Education,
		"Skills":    p.Skills,
		"Projects":  p.Projects,
	}
}

// RecordColumns are the header labels of the sink, columns A:J
var RecordColumns = []string{
	"Name", "Job Title", "Degree", "Phone", "Email",
	"Education", "Skills", "Projects", "CV Link", "Submitted At",
}

// Record is the row appended to the tabular sink
type Record struct {
	Name        string
	JobTitle    string
	Degree      string
	Phone       string
	Email       string
	Education   string
	Skills      string
	Projects    string
	CVLink      string
	SubmittedAt time.Time
}

// NewRecord shapes a sink row. Phone comes from the validated form input,
// every other field from the parsed CV text.
func NewRecord(sub Submission, fields ParsedFields, ref DocumentRef) Record {
	return Record{
		Name:        fields.Name,
		JobTitle:    fields.JobTitle,
		Degree:      fields.Degree,
		Phone:       sub.Phone,
		Email:       fields.Email,
		Education:   fields.Education,
		Skills:      fields.Skills,
		Projects:    fields.Projects,
		CVLink:      ref.URL,
		SubmittedAt: sub.SubmittedAt,
	}
}

// Row returns the record values in column order
func (r Record) Row() []interface{} {
	return []interface{}{
		r.Name,
		r.JobTitle,
		r.Degree,
		r.Phone,
		r.Email,
		r.Education,
		r.Skills,
		r.Projects,
		r.CVLink,
		r.SubmittedAt.Format(time.RFC3339),
	}
}

// PersonalInfo groups the contact details sent to the webhook
type PersonalInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CVData is the parsed content section of the webhook payload
type CVData struct {
	PersonalInfo   PersonalInfo `json:"personal_info"`
	Education      []string     `json:"education"`
	Qualifications []string     `json:"qualifications"`
	Projects       []string     `json:"projects"`
	Skills         []string     `json:"skills"`
}

// PayloadMetadata describes the processing state of a submission
type PayloadMetadata struct {
	Status             string `json:"status"`
	CVProcessed        bool   `json:"cv_processed"`
	ProcessedTimestamp string `json:"processed_timestamp"`
}

// NotificationPayload is the JSON body posted to the webhook
type NotificationPayload struct {
	CVData       CVData          `json:"cv_data"`
	CVPublicLink string          `json:"cv_public_link"`
	Metadata     PayloadMetadata `json:"metadata"`
}

// NewNotificationPayload builds the webhook body from parsed fields
func NewNotificationPayload(fields ParsedFields, ref DocumentRef, status string, processedAt time.Time) NotificationPayload {
	return NotificationPayload{
		CVData: CVData{
			PersonalInfo: PersonalInfo{
				Name:  fields.Name,
				Email: fields.Email,
				Phone: fields.Phone,
			},
			Education:      strings.Split(fields.Education, LineDelimiter),
			Qualifications: strings.Split(fields.Degree, LineDelimiter),
			Projects:       strings.Split(fields.Projects, LineDelimiter),
			Skills:         strings.Split(fields.Skills, SkillDelimiter),
		},
		CVPublicLink: ref.URL,
		Metadata: PayloadMetadata{
			Status:             status,
			CVProcessed:        true,
			ProcessedTimestamp: processedAt.UTC().Format(time.RFC3339),
		},
	}
}
