package normalize

import (
	"math"
	"testing"

	"example.com/flightlog/internal/config"
	"example.com/flightlog/internal/logdata"
)

func batchOf(series ...*logdata.RawSeries) *logdata.RawBatch {
	b := logdata.NewRawBatch()
	b.Series = series
	return b
}

func numeric(t float64, v float64) logdata.RawSample {
	return logdata.RawSample{Time: t, Num: v, Numeric: true}
}

func TestNormalizeRenamesGroupsAndScales(t *testing.T) {
	cfg := config.Default()
	raw := &logdata.RawSeries{
		Key:  logdata.RawKey{Message: "GLOBAL_POSITION_INT", Field: "lat"},
		Unit: "degE7",
		Samples: []logdata.RawSample{
			numeric(0, 473977000),
			numeric(1, 473978000),
		},
	}
	out := Normalize(batchOf(raw), &cfg.Telemetry, cfg)
	if len(out) != 1 {
		t.Fatalf("got %d channels, want 1", len(out))
	}
	ch := out[0]
	if ch.Name != "GPS.Latitude (deg)" {
		t.Fatalf("name = %q, want GPS.Latitude (deg)", ch.Name)
	}
	if ch.Group != "GPS" {
		t.Errorf("group = %q, want GPS", ch.Group)
	}
	if math.Abs(ch.Samples[0].Value-47.3977) > 1e-9 {
		t.Errorf("value = %v, want 47.3977", ch.Samples[0].Value)
	}
}

func TestNormalizeExplicitScaleOverridesUnitsTable(t *testing.T) {
	cfg := config.Default()
	override := 2.0
	cfg.Telemetry.Messages["GLOBAL_POSITION_INT"] = config.MessageRule{
		Group: "GPS",
		Fields: map[string]config.FieldRule{
			"alt": {BaseName: "Altitude", Unit: "m", Scale: &override},
		},
	}
	// The raw unit tag "mm" has a units-table entry (x0.001); the explicit
	// rule scale must win.
	raw := &logdata.RawSeries{
		Key:     logdata.RawKey{Message: "GLOBAL_POSITION_INT", Field: "alt"},
		Unit:    "mm",
		Samples: []logdata.RawSample{numeric(0, 100)},
	}
	out := Normalize(batchOf(raw), &cfg.Telemetry, cfg)
	if len(out) != 1 {
		t.Fatalf("got %d channels, want 1", len(out))
	}
	if out[0].Samples[0].Value != 200 {
		t.Fatalf("value = %v, want 200 (explicit scale)", out[0].Samples[0].Value)
	}
}

func TestNormalizeUnitsTableScaleWhenNoOverride(t *testing.T) {
	cfg := config.Default()
	raw := &logdata.RawSeries{
		Key:     logdata.RawKey{Message: "GLOBAL_POSITION_INT", Field: "alt"},
		Unit:    "mm",
		Samples: []logdata.RawSample{numeric(0, 120000)},
	}
	out := Normalize(batchOf(raw), &cfg.Telemetry, cfg)
	if len(out) != 1 {
		t.Fatalf("got %d channels, want 1", len(out))
	}
	if out[0].Name != "GPS.Altitude (m)" {
		t.Errorf("name = %q, want GPS.Altitude (m)", out[0].Name)
	}
	if math.Abs(out[0].Samples[0].Value-120) > 1e-9 {
		t.Errorf("value = %v, want 120", out[0].Samples[0].Value)
	}
}

func TestNormalizeUnmatchedKeyVerbatimIntoOtherGroup(t *testing.T) {
	cfg := config.Default()
	raw := &logdata.RawSeries{
		Key:     logdata.RawKey{Field: "Fuel(ml)"},
		Unit:    "mm", // must NOT scale: no rule matched
		Samples: []logdata.RawSample{numeric(0, 250)},
	}
	out := Normalize(batchOf(raw), &cfg.CSV, cfg)
	if len(out) != 1 {
		t.Fatalf("got %d channels, want 1", len(out))
	}
	ch := out[0]
	if ch.Name != "Fuel(ml)" {
		t.Errorf("name = %q, want verbatim Fuel(ml)", ch.Name)
	}
	if ch.Group != config.DefaultGroup {
		t.Errorf("group = %q, want %q", ch.Group, config.DefaultGroup)
	}
	if ch.Samples[0].Value != 250 {
		t.Errorf("value = %v, want unscaled 250", ch.Samples[0].Value)
	}
}

func TestNormalizeDropsAllInvalidSeries(t *testing.T) {
	cfg := config.Default()
	raw := &logdata.RawSeries{
		Key: logdata.RawKey{Field: "RxBt(V)"},
		Samples: []logdata.RawSample{
			{Time: 0, Str: "n/a"},
			{Time: 1},
			{Time: 2, Str: "---"},
		},
	}
	out := Normalize(batchOf(raw), &cfg.CSV, cfg)
	if len(out) != 0 {
		t.Fatalf("all-invalid series survived: %v", out[0].Name)
	}
}

func TestNormalizeParsesNumericStrings(t *testing.T) {
	cfg := config.Default()
	raw := &logdata.RawSeries{
		Key: logdata.RawKey{Field: "RxBt(V)"},
		Samples: []logdata.RawSample{
			{Time: 0, Str: " 8.25 "},
			{Time: 1, Str: "bad"},
			numeric(2, 8.1),
		},
	}
	out := Normalize(batchOf(raw), &cfg.CSV, cfg)
	if len(out) != 1 {
		t.Fatalf("got %d channels, want 1", len(out))
	}
	ch := out[0]
	if len(ch.Samples) != 3 {
		t.Fatalf("got %d samples, want 3 (index alignment)", len(ch.Samples))
	}
	if ch.Samples[0].Value != 8.25 {
		t.Errorf("parsed string value = %v, want 8.25", ch.Samples[0].Value)
	}
	if !math.IsNaN(ch.Samples[1].Value) {
		t.Errorf("unparseable cell = %v, want NaN placeholder", ch.Samples[1].Value)
	}
}

func TestNormalizeSortedOutput(t *testing.T) {
	cfg := config.Default()
	b := batchOf(
		&logdata.RawSeries{Key: logdata.RawKey{Field: "Zed"}, Samples: []logdata.RawSample{numeric(0, 1)}},
		&logdata.RawSeries{Key: logdata.RawKey{Field: "Alpha"}, Samples: []logdata.RawSample{numeric(0, 1)}},
	)
	out := Normalize(b, &cfg.CSV, cfg)
	if len(out) != 2 || out[0].Name != "Alpha" || out[1].Name != "Zed" {
		t.Fatalf("output not sorted by name: %v", []string{out[0].Name, out[1].Name})
	}
}

func TestChannelName(t *testing.T) {
	cases := []struct {
		group, base, suffix, want string
	}{
		{"GPS", "Altitude", "m", "GPS.Altitude (m)"},
		{"GPS", "Latitude", "", "GPS.Latitude"},
		{"", "Raw", "", "Raw"},
	}
	for _, tc := range cases {
		if got := ChannelName(tc.group, tc.base, tc.suffix); got != tc.want {
			t.Errorf("ChannelName(%q,%q,%q) = %q, want %q", tc.group, tc.base, tc.suffix, got, tc.want)
		}
	}
}
