package intake

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF")

func docxBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("<xml/>"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func validForm() Form {
	return Form{Name: "Jane Doe", Email: "jane@example.com", Phone: "+94712345678"}
}

func fieldsOf(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.ByField()
}

func TestValidateAcceptsPDF(t *testing.T) {
	v := NewValidator(0)

	sub, err := v.Validate(validForm(), &Upload{Filename: "cv.pdf", Size: int64(len(pdfBytes)), Data: pdfBytes})
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", sub.Name)
	assert.Equal(t, MediaTypePDF, sub.MediaType)
	assert.Equal(t, "cv.pdf", sub.Filename)
	assert.Equal(t, pdfBytes, sub.Document)
}

func TestValidateAcceptsDOCX(t *testing.T) {
	data := docxBytes(t)

	sub, err := NewValidator(0).Validate(validForm(), &Upload{Filename: "cv.docx", Size: int64(len(data)), Data: data})
	require.NoError(t, err)
	assert.Equal(t, MediaTypeDOCX, sub.MediaType)
}

func TestValidateReportsEveryMissingField(t *testing.T) {
	_, err := NewValidator(0).Validate(Form{}, nil)
	require.Error(t, err)

	fields := fieldsOf(t, err)
	for _, name := range []string{"name", "email", "phone", "cv"} {
		assert.Contains(t, fields, name)
	}
	assert.Equal(t, []string{"The name field is required."}, fields["name"])
	assert.Equal(t, []string{"The cv field is required."}, fields["cv"])
}

func TestValidateFieldRules(t *testing.T) {
	tests := []struct {
		name  string
		form  Form
		field string
	}{
		{name: "Name too long", form: Form{Name: strings.Repeat("a", 256), Email: "a@b.co", Phone: "0712345678"}, field: "name"},
		{name: "Bad email", form: Form{Name: "A", Email: "not-an-email", Phone: "0712345678"}, field: "email"},
		{name: "Phone too short", form: Form{Name: "A", Email: "a@b.co", Phone: "071234"}, field: "phone"},
		{name: "Phone too long", form: Form{Name: "A", Email: "a@b.co", Phone: "0712345678901234"}, field: "phone"},
		{name: "Whitespace name", form: Form{Name: "   ", Email: "a@b.co", Phone: "0712345678"}, field: "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewValidator(0).Validate(tt.form, &Upload{Filename: "cv.pdf", Data: pdfBytes})
			require.Error(t, err)

			fields := fieldsOf(t, err)
			assert.Len(t, fields, 1)
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidateRejectsOversizedFile(t *testing.T) {
	v := NewValidator(1024)
	data := append(append([]byte{}, pdfBytes...), bytes.Repeat([]byte(" "), 2048)...)

	_, err := v.Validate(validForm(), &Upload{Filename: "cv.pdf", Size: int64(len(data)), Data: data})
	require.Error(t, err)

	fields := fieldsOf(t, err)
	assert.Equal(t, []string{"The cv must not be greater than 1 kilobytes."}, fields["cv"])
}

func TestValidateRejectsDisallowedTypes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "Plain text", data: []byte("Jane Doe\nEngineer\n")},
		{name: "PNG", data: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")},
		{name: "Plain zip", data: func() []byte {
			var buf bytes.Buffer
			zw := zip.NewWriter(&buf)
			w, _ := zw.Create("notes.txt")
			w.Write([]byte("hello"))
			zw.Close()
			return buf.Bytes()
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewValidator(0).Validate(validForm(), &Upload{Filename: "cv.pdf", Data: tt.data})
			require.Error(t, err)
			assert.Equal(t, []string{"The cv must be a file of type: pdf, docx."}, fieldsOf(t, err)["cv"])
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{
		{Field: "name", Message: "The name field is required."},
		{Field: "cv", Message: "The cv field is required."},
	}}
	assert.Equal(t, "validation failed: The name field is required.; The cv field is required.", err.Error())
}
