package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"example.com/flightlog/internal/logdata"
)

func summaryDataset() *logdata.LogDataset {
	volt := &logdata.Channel{
		Name: "POWER.VFAS (V)", Group: "POWER", Unit: "V", Origin: logdata.OriginRaw,
		Samples: []logdata.Sample{{Time: 0, Value: 12.0}, {Time: 1, Value: 11.5}},
	}
	empty := &logdata.Channel{
		Name: "OTHER.Blank", Group: "OTHER", Origin: logdata.OriginRaw,
		Samples: []logdata.Sample{{Time: 0, Value: math.NaN()}},
	}
	meta := logdata.Metadata{
		SourcePath:    "/logs/flight.csv",
		Format:        logdata.FormatTextCsv,
		SizeBytes:     2048,
		LoadedAt:      time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		TypesImported: []string{"VFAS(V)"},
		Duration:      1,
		SampleRate:    2,
	}
	return logdata.NewDataset(meta, []*logdata.Channel{volt, empty})
}

func TestSaveSummaryPDF(t *testing.T) {
	out := filepath.Join(t.TempDir(), "summary.pdf")
	digest := "ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12"
	if err := SaveSummaryPDF(summaryDataset(), digest, out); err != nil {
		t.Fatalf("SaveSummaryPDF: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output does not start with a PDF header: %q", data[:8])
	}
}

func TestSaveSummaryPDFWithoutDigest(t *testing.T) {
	out := filepath.Join(t.TempDir(), "summary.pdf")
	if err := SaveSummaryPDF(summaryDataset(), "", out); err != nil {
		t.Fatalf("SaveSummaryPDF without digest: %v", err)
	}
}

func TestDigestQR(t *testing.T) {
	digest := "AB12CD34EF56AB12CD34EF56AB12CD34EF56AB12CD34EF56AB12CD34EF56AB12"
	png, err := digestQR(" "+digest+" ", 64)
	if err != nil {
		t.Fatalf("digestQR: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("QR output is not a PNG")
	}
}

func TestDigestQRRejectsMalformed(t *testing.T) {
	for _, digest := range []string{"", "ab12cd34", "zz" + "ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab"} {
		if _, err := digestQR(digest, 64); err == nil {
			t.Errorf("digestQR accepted malformed digest %q", digest)
		}
	}
}
