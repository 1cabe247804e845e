package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vendorlens/reconciler/internal/domain"
)

// Format selects the file type an export produces.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var columns = []string{
	"Report ID",
	"Invoice Number",
	"Invoice Date",
	"Vendor ID",
	"Invoice Total",
	"Discrepancy Count",
	"High Severity",
	"Medium Severity",
	"Low Severity",
	"Overcharge Amount",
	"Priority",
	"Relevance",
	"Read Status",
	"AI Model",
	"Created At",
}

// rowWriter receives report rows chunk by chunk and produces the final file.
type rowWriter interface {
	add(r domain.ReconciliationReport) error
	finish() (data []byte, filename, contentType string, err error)
}

func newWriter(format Format) (rowWriter, error) {
	switch format {
	case FormatCSV:
		return newCSVWriter()
	case FormatXLSX, "":
		return newXLSXWriter()
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func severityCounts(r domain.ReconciliationReport) (high, medium, low int) {
	for _, d := range r.Discrepancies {
		switch d.Severity {
		case domain.SeverityHigh:
			high++
		case domain.SeverityMedium:
			medium++
		case domain.SeverityLow:
			low++
		}
	}
	return high, medium, low
}

func rowValues(r domain.ReconciliationReport) []interface{} {
	high, medium, low := severityCounts(r)
	return []interface{}{
		r.ID.String(),
		r.InvoiceNumber,
		r.InvoiceDate,
		r.VendorID.String(),
		r.InvoiceTotal.StringFixed(2),
		len(r.Discrepancies),
		high,
		medium,
		low,
		r.TotalDiscrepancyAmount.StringFixed(2),
		string(r.Priority),
		string(r.Relevance),
		string(r.ReadStatus),
		r.Metadata.AIModel,
		r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type xlsxWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func newXLSXWriter() (*xlsxWriter, error) {
	f := excelize.NewFile()
	const sheet = "Reconciliation Reports"
	f.SetSheetName("Sheet1", sheet)

	for i, h := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 38); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "B", "O", 18); err != nil {
		return nil, err
	}

	return &xlsxWriter{f: f, sheet: sheet, row: 2}, nil
}

func (w *xlsxWriter) add(r domain.ReconciliationReport) error {
	for i, v := range rowValues(r) {
		cell, err := excelize.CoordinatesToCellName(i+1, w.row)
		if err != nil {
			return err
		}
		if err := w.f.SetCellValue(w.sheet, cell, v); err != nil {
			return err
		}
	}
	w.row++
	return nil
}

func (w *xlsxWriter) finish() ([]byte, string, string, error) {
	defer w.f.Close()
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return nil, "", "", err
	}
	name := fmt.Sprintf("reconciliation-reports-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	return buf.Bytes(), name, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
}

type csvWriter struct {
	buf *bytes.Buffer
	w   *csv.Writer
}

func newCSVWriter() (*csvWriter, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(columns); err != nil {
		return nil, err
	}
	return &csvWriter{buf: buf, w: w}, nil
}

func (w *csvWriter) add(r domain.ReconciliationReport) error {
	vals := rowValues(r)
	record := make([]string, len(vals))
	for i, v := range vals {
		switch t := v.(type) {
		case string:
			record[i] = t
		case int:
			record[i] = strconv.Itoa(t)
		default:
			record[i] = fmt.Sprint(t)
		}
	}
	return w.w.Write(record)
}

func (w *csvWriter) finish() ([]byte, string, string, error) {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return nil, "", "", err
	}
	name := fmt.Sprintf("reconciliation-reports-%s.csv", time.Now().UTC().Format("20060102-150405"))
	return w.buf.Bytes(), name, "text/csv", nil
}
