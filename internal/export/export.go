// Package export renders contacts as CSV or XLSX and hands the result to a
// blob destination.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Contacts"

// Header is the first row of every export.
var Header = []string{"Name", "Email", "Keyword", "Source", "CollectedAt", "SentAt"}

// Destination stores an export and returns its URI.
type Destination interface {
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}

// ParseFormat accepts "csv" or "xlsx", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Write renders contacts to w in format f.
func Write(w io.Writer, f Format, contacts []harvest.Contact) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, contacts)
	case FormatXLSX:
		return WriteXLSX(w, contacts)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// Export renders contacts and stores them at path in dest.
func Export(ctx context.Context, dest Destination, path string, f Format, contacts []harvest.Contact) (string, error) {
	var buf bytes.Buffer
	if err := Write(&buf, f, contacts); err != nil {
		return "", err
	}
	uri, err := dest.PutObject(ctx, path, f.ContentType(), &buf)
	if err != nil {
		return "", fmt.Errorf("store export: %w", err)
	}
	return uri, nil
}

// WriteCSV writes a header row and one row per contact.
func WriteCSV(w io.Writer, contacts []harvest.Contact) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range contacts {
		if err := cw.Write(row(c)); err != nil {
			return fmt.Errorf("write csv row %s: %w", c.Email, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteXLSX writes a workbook with a single Contacts sheet.
func WriteXLSX(w io.Writer, contacts []harvest.Contact) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, c := range contacts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		values := row(c)
		cells := make([]any, len(values))
		for j, v := range values {
			cells[j] = v
		}
		if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
			return fmt.Errorf("write xlsx row %s: %w", c.Email, err)
		}
	}
	if err := f.SetColWidth(SheetName, "A", "F", 28); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func row(c harvest.Contact) []string {
	sent := ""
	if c.SentAt != nil {
		sent = c.SentAt.UTC().Format(time.RFC3339)
	}
	return []string{
		c.Name,
		c.Email,
		c.Keyword,
		c.Source,
		c.CollectedAt.UTC().Format(time.RFC3339),
		sent,
	}
}

// FileName returns a timestamped name such as "contacts-20240701-120000.csv".
func FileName(prefix string, f Format, at time.Time) string {
	if prefix == "" {
		prefix = "contacts"
	}
	return fmt.Sprintf("%s-%s.%s", prefix, at.UTC().Format("20060102-150405"), f)
}
