package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/chiranSam/job-application-form/internal/models"
)

func sampleRecord(name string) models.Record {
	return models.Record{
		Name:        name,
		JobTitle:    "Software Engineer",
		Degree:      "BSc in Computer Science",
		Phone:       "0712345678",
		Email:       "jane@example.com",
		Education:   "University of Colombo",
		Skills:      "Java, SQL",
		Projects:    "Inventory Management System",
		CVLink:      "https://storage.googleapis.com/cv-bucket/cv-documents/a-cv.pdf",
		SubmittedAt: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(WorkbookSheet)
	require.NoError(t, err)
	return rows
}

// TestNewWorkbookSink_EnsuresXlsxExtension tests that .xlsx extension is added if missing
func TestNewWorkbookSink_EnsuresXlsxExtension(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "Missing extension", path: "out/applications", want: filepath.Clean("out/applications.xlsx")},
		{name: "Existing extension", path: "out/applications.xlsx", want: filepath.Clean("out/applications.xlsx")},
		{name: "Upper case extension", path: "out/applications.XLSX", want: filepath.Clean("out/applications.XLSX")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewWorkbookSink(tt.path).Path())
		})
	}
}

func TestWorkbookSinkCreatesHeaderAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "applications.xlsx")
	s := NewWorkbookSink(path)

	require.NoError(t, s.Append(context.Background(), sampleRecord("Jane Doe")))
	require.NoError(t, s.Append(context.Background(), sampleRecord("John Smith")))

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, models.RecordColumns, rows[0])
	assert.Equal(t, "Jane Doe", rows[1][0])
	assert.Equal(t, "0712345678", rows[1][3])
	assert.Equal(t, "2024-03-01T10:30:00Z", rows[1][9])
	assert.Equal(t, "John Smith", rows[2][0])

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	ok, link, err := f.GetCellHyperLink(WorkbookSheet, "I2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sampleRecord("").CVLink, link)
}

func TestWorkbookSinkConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "applications.xlsx")
	s := NewWorkbookSink(path)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Append(context.Background(), sampleRecord(fmt.Sprintf("Candidate %d", i))))
		}(i)
	}
	wg.Wait()

	assert.Len(t, readRows(t, path), 9)
}

func TestWorkbookSinkRejectsForeignWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SaveAs(path))
	f.Close()

	err := NewWorkbookSink(path).Append(context.Background(), sampleRecord("Jane"))
	assert.Error(t, err)
}

func TestWorkbookSinkUnwritableLocation(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := NewWorkbookSink(filepath.Join(blocker, "applications.xlsx")).Append(context.Background(), sampleRecord("Jane"))
	assert.Error(t, err)
}
