package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/remusdec/internal/qc"
	"example.com/remusdec/internal/rlf"
)

// SaveRunPDF renders the run report into a PDF document.
func SaveRunPDF(rep RunReport, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Run Report", false)
	pdf.SetAuthor("remusctl", false)
	pdf.SetCreator("remusctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Run Report")
	addVehicleSection(pdf, rep)
	addRecordSection(pdf, rep.RunLog.Records)
	if rep.Profiler != nil {
		addProfilerSection(pdf, *rep.Profiler)
	}
	if rep.Acceptance != nil {
		addAcceptanceSection(pdf, *rep.Acceptance)
	}
	addDigestSection(pdf, rep.RunLog.Sha256)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addVehicleSection(pdf *gofpdf.Fpdf, rep RunReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Vehicle")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Name", value: emptyFallback(rep.Vehicle.Name, "-")},
		{label: "Manufacturer", value: emptyFallback(rep.Vehicle.Manufacturer, "-")},
		{label: "Run Log", value: emptyFallback(rep.RunLog.Path, "-")},
		{label: "Generated", value: rep.GeneratedAt.Format(time.RFC3339)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addRecordSection(pdf *gofpdf.Fpdf, rows []rlf.SummaryEntry) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Record Summary")
	pdf.Ln(9)

	headers := []string{"Record", "Code", "Count", "Bytes", "Failures"}
	widths := []float64{76, 24, 26, 34, 30}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, row := range rows {
		values := []string{
			row.Name,
			row.Code,
			strconv.Itoa(row.Count),
			strconv.Itoa(row.PayloadBytes),
			strconv.Itoa(row.DecodeFailures),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addProfilerSection(pdf *gofpdf.Fpdf, info ProfilerInfo) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Profiler")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "System", value: fmt.Sprintf("%d kHz, %d beams at %d deg",
			info.FrequencyKHz, info.NBeams, info.BeamAngle)},
		{label: "Cells", value: fmt.Sprintf("%d of %d cm", info.NCells, info.CellSizeCM)},
		{label: "Coordinates", value: emptyFallback(info.Coordinates, "-")},
		{label: "Ensembles", value: strconv.Itoa(info.Ensembles)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addAcceptanceSection(pdf *gofpdf.Fpdf, acc qc.AcceptanceReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Quality Control")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	summary := fmt.Sprintf("%s: %d findings, %d errors, %d warnings",
		passLabel(acc.Summary.Pass), acc.Summary.Total,
		acc.Summary.Errors, acc.Summary.Warnings)
	pdf.MultiCell(0, 6, summary, "", "L", false)
	pdf.Ln(2)

	for i, d := range acc.Findings {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s (%s)", i+1, d.RuleId, severityLabel(d.Severity))
		pdf.MultiCell(0, 5, header, "", "L", false)

		if msg := strings.TrimSpace(d.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}

		meta := findingMetadata(d)
		if meta != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, meta, "", "L", false)
		}
		pdf.Ln(1)
	}
	pdf.Ln(3)
}

func addDigestSection(pdf *gofpdf.Fpdf, digest string) {
	if strings.TrimSpace(digest) == "" {
		return
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Run Log Digest")
	pdf.Ln(8)

	pdf.SetFont("Courier", "", 8)
	pdf.MultiCell(0, 4, strings.ToUpper(digest), "", "L", false)
	pdf.Ln(2)

	png, err := DigestToQR(digest, 256)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("run-digest", opts, bytes.NewReader(png))
	pdf.ImageOptions("run-digest", pdf.GetX(), pdf.GetY(), 32, 32, false, opts, 0, "")
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func severityLabel(sev qc.Severity) string {
	if s := strings.TrimSpace(string(sev)); s != "" {
		return s
	}
	return "UNKNOWN"
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

func findingMetadata(d qc.Diagnostic) string {
	parts := make([]string, 0, 4)
	if !d.Ts.IsZero() {
		parts = append(parts, d.Ts.Format(time.RFC3339))
	}
	if d.File != "" {
		parts = append(parts, d.File)
	}
	if d.RecordType != "" {
		parts = append(parts, d.RecordType)
	}
	if d.Value != nil {
		parts = append(parts, fmt.Sprintf("Value %g", *d.Value))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " / ")
}
