// Package sink appends application records to a tabular store.
package sink

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/chiranSam/job-application-form/internal/models"
)

// DefaultRange covers the ten record columns of the first sheet
const DefaultRange = "Sheet1!A:J"

// SheetsSink appends records to a Google Sheets spreadsheet
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
	valueRange    string
}

// NewSheetsService creates a Sheets client from a service account key file.
// An empty path falls back to application default credentials.
func NewSheetsService(ctx context.Context, credentialsPath string, opts ...option.ClientOption) (*sheets.Service, error) {
	if credentialsPath != "" {
		data, err := os.ReadFile(credentialsPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read credentials file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	} else {
		opts = append(opts, option.WithScopes(sheets.SpreadsheetsScope))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return svc, nil
}

// NewSheetsSink creates a sink appending to valueRange of spreadsheetID
func NewSheetsSink(svc *sheets.Service, spreadsheetID, valueRange string) *SheetsSink {
	if valueRange == "" {
		valueRange = DefaultRange
	}
	return &SheetsSink{svc: svc, spreadsheetID: spreadsheetID, valueRange: valueRange}
}

// Append adds record as a new row after the last row of the range
func (s *SheetsSink) Append(ctx context.Context, record models.Record) error {
	body := &sheets.ValueRange{Values: [][]interface{}{record.Row()}}

	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.valueRange, body).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row to spreadsheet %s: %w", s.spreadsheetID, err)
	}
	return nil
}
