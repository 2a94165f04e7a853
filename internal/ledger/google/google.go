package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/Hxryknight/Finanzasbot/internal/core"
	"github.com/Hxryknight/Finanzasbot/internal/ledger"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// The transactions worksheet keeps the template layout of the shared sheet.
const sheetName = "Transacciones"

var headerRow = []any{"Fecha", "Tipo", "Monto", "Categoría", "Medio", "Nota"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Ensure interface conformance
var (
	_ ledger.Appender = (*Client)(nil)
	_ ledger.Lister   = (*Client)(nil)
)

// Config carries the target spreadsheet and the service account credentials
// as an inline JSON blob.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
}

// New creates a Sheets-backed ledger. Missing identifiers and malformed
// credentials fail here so that per-call failures are always network or auth.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, fmt.Errorf("%w: missing SHEET_ID", ledger.ErrNotConfigured)
	}
	creds := strings.TrimSpace(cfg.ServiceAccountJSON)
	if creds == "" {
		return nil, fmt.Errorf("%w: missing GOOGLE_SA_JSON", ledger.ErrNotConfigured)
	}
	if !json.Valid([]byte(creds)) {
		return nil, errors.New("GOOGLE_SA_JSON is not valid JSON")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON([]byte(creds)),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID}, nil
}

// Append writes one transaction row to the transactions worksheet, creating
// the worksheet with its header on first use.
func (c *Client) Append(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if err := c.ensureSheet(ctx); err != nil {
		return err
	}

	vr := &gsheet.ValueRange{Values: [][]any{{
		tx.Date,
		string(tx.Kind),
		float64(tx.Amount.Cents) / 100.0,
		tx.Category,
		tx.Method,
		tx.Note,
	}}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheetName+"!A:F", vr).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: append row to %s: %v", ledger.ErrUnavailable, sheetName, err)
	}
	return nil
}

// All reads every stored row below the header. Coercion is defensive: a
// malformed amount degrades that field to zero instead of failing the fetch.
func (c *Client) All(ctx context.Context) ([]core.Transaction, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if err := c.ensureSheet(ctx); err != nil {
		return nil, err
	}

	rng := sheetName + "!A2:F"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ledger.ErrUnavailable, rng, err)
	}

	out := make([]core.Transaction, 0, len(resp.Values))
	for _, row := range resp.Values {
		cols := toStrings(row)
		if safeGet(cols, 0) == "" {
			continue
		}
		tx := core.Transaction{
			Date:     safeGet(cols, 0),
			Kind:     core.Kind(safeGet(cols, 1)),
			Category: safeGet(cols, 3),
			Method:   safeGet(cols, 4),
			Note:     safeGet(cols, 5),
		}
		if cents, ok := parseAmountToCents(safeGet(cols, 2)); ok {
			tx.Amount = core.Money{Cents: cents}
		}
		out = append(out, tx)
	}
	return out, nil
}

// ensureSheet creates the transactions worksheet with its header row when the
// spreadsheet does not carry it yet.
func (c *Client) ensureSheet(ctx context.Context) error {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: get spreadsheet: %v", ledger.ErrUnavailable, err)
	}
	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.Title == sheetName {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{
					Title:          sheetName,
					GridProperties: &gsheet.GridProperties{RowCount: 1000, ColumnCount: 10},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: add sheet %s: %v", ledger.ErrUnavailable, sheetName, err)
	}

	vr := &gsheet.ValueRange{Values: [][]any{headerRow}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, sheetName+"!A1:F1", vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: write header: %v", ledger.ErrUnavailable, err)
	}
	slog.InfoContext(ctx, "Created transactions worksheet", "sheet", sheetName)
	return nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func parseAmountToCents(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// Normalize decimal comma
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(math.Round(f * 100)), true
}
