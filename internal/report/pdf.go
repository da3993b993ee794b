// Package report renders a flight summary document for a loaded dataset:
// file-level metadata, the channel statistics table and a QR code carrying
// the source file's digest for later provenance checks.
package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"example.com/flightlog/internal/logdata"
)

var sha256HexRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// SaveSummaryPDF renders the dataset summary into a PDF document. sourceSum
// is the hex SHA-256 of the source file; when non-empty it is embedded both
// as text and as a QR code.
func SaveSummaryPDF(ds *logdata.LogDataset, sourceSum, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Flight Log Summary", false)
	pdf.SetAuthor("fltlog", false)
	pdf.SetCreator("fltlog", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Flight Log Summary")
	addMetadataSection(pdf, ds.Meta)
	addChannelSection(pdf, ds)
	if sourceSum != "" {
		addProvenanceSection(pdf, sourceSum)
	}

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

func addMetadataSection(pdf *gofpdf.Fpdf, meta logdata.Metadata) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Source")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "File", value: meta.SourcePath},
		{label: "Format", value: string(meta.Format)},
		{label: "Size", value: humanize.IBytes(uint64(meta.SizeBytes))},
		{label: "Loaded", value: meta.LoadedAt.Format("2006-01-02 15:04:05")},
		{label: "Duration", value: fmt.Sprintf("%.1f s", meta.Duration)},
		{label: "Sample Rate", value: fmt.Sprintf("%.1f Hz", meta.SampleRate)},
		{label: "Skipped Records", value: strconv.Itoa(meta.SkippedRecords)},
		{label: "Time Axis", value: timeAxisLabel(meta.SyntheticTime)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	if len(meta.TypesImported) > 0 {
		pdf.CellFormat(50, 6, "Imported Types", "", 0, "L", false, 0, "")
		pdf.MultiCell(0, 6, strings.Join(meta.TypesImported, ", "), "", "L", false)
	}
	pdf.Ln(4)
}

func addChannelSection(pdf *gofpdf.Fpdf, ds *logdata.LogDataset) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Channels")
	pdf.Ln(9)

	headers := []string{"Channel", "Origin", "Samples", "Mean", "Min", "Max"}
	widths := []float64{72, 20, 20, 26, 26, 26}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, name := range ds.ChannelNames() {
		ch := ds.Channel(name)
		st, ok := ch.Stats()
		if !ok {
			continue
		}
		values := []string{
			ch.Name,
			string(ch.Origin),
			strconv.Itoa(st.Count),
			statLabel(st.Mean),
			statLabel(st.Min),
			statLabel(st.Max),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addProvenanceSection(pdf *gofpdf.Fpdf, sourceSum string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Provenance")
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 5, "SHA-256: "+sourceSum, "", "L", false)

	png, err := digestQR(sourceSum, 128)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("source-digest-qr", opts, strings.NewReader(string(png)))
	pdf.ImageOptions("source-digest-qr", pdf.GetX(), pdf.GetY()+2, 32, 32, false, opts, 0, "")
	pdf.Ln(38)
}

// digestQR encodes a SHA-256 hex digest as a "sha256:<digest>" QR payload so
// a scan can be compared against the source file directly. Anything but a
// full 64-digit digest is rejected rather than encoded partially.
func digestQR(digest string, size int) ([]byte, error) {
	d := strings.ToLower(strings.TrimSpace(digest))
	if !sha256HexRe.MatchString(d) {
		return nil, fmt.Errorf("malformed SHA-256 digest %q", digest)
	}
	if size <= 0 {
		size = 128
	}
	return qrcode.Encode("sha256:"+d, qrcode.Medium, size)
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

func timeAxisLabel(synthetic bool) string {
	if synthetic {
		return "synthetic (1 Hz)"
	}
	return "from source"
}

func statLabel(v float64) string {
	if v != 0 && (v < 0.01 && v > -0.01 || v >= 100000 || v <= -100000) {
		return fmt.Sprintf("%.3g", v)
	}
	return fmt.Sprintf("%.2f", v)
}
