package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

type appendCall struct {
	path   string
	query  map[string]string
	values [][]interface{}
}

func newFakeSheets(t *testing.T, status int) (*sheets.Service, *appendCall) {
	t.Helper()
	call := &appendCall{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call.path = r.URL.Path
		call.query = map[string]string{
			"valueInputOption": r.URL.Query().Get("valueInputOption"),
			"insertDataOption": r.URL.Query().Get("insertDataOption"),
		}
		var body sheets.ValueRange
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		call.values = body.Values

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			json.NewEncoder(w).Encode(sheets.AppendValuesResponse{SpreadsheetId: "sheet-1"})
			return
		}
		w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`))
	}))
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return svc, call
}

func TestSheetsSinkAppend(t *testing.T) {
	svc, call := newFakeSheets(t, http.StatusOK)
	s := NewSheetsSink(svc, "sheet-1", "")

	require.NoError(t, s.Append(context.Background(), sampleRecord("Jane Doe")))

	assert.Equal(t, "/v4/spreadsheets/sheet-1/values/Sheet1!A:J:append", call.path)
	assert.Equal(t, "RAW", call.query["valueInputOption"])
	assert.Equal(t, "INSERT_ROWS", call.query["insertDataOption"])
	require.Len(t, call.values, 1)
	require.Len(t, call.values[0], 10)
	assert.Equal(t, "Jane Doe", call.values[0][0])
	assert.Equal(t, "0712345678", call.values[0][3])
}

func TestSheetsSinkAppendFailure(t *testing.T) {
	svc, _ := newFakeSheets(t, http.StatusForbidden)
	s := NewSheetsSink(svc, "sheet-1", "Applicants!A:J")

	err := s.Append(context.Background(), sampleRecord("Jane Doe"))
	assert.ErrorContains(t, err, "sheet-1")
}

func TestNewSheetsServiceMissingCredentials(t *testing.T) {
	_, err := NewSheetsService(context.Background(), "/nonexistent/credentials.json")
	assert.Error(t, err)
}
