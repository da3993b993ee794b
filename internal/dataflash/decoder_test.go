package dataflash

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"example.com/flightlog/internal/config"
	"example.com/flightlog/internal/logdata"
)

func fmtRecord(t *testing.T, code, length byte, name, format, columns string) []byte {
	t.Helper()
	rec := make([]byte, fmtRecordLen)
	rec[0], rec[1], rec[2] = head1, head2, fmtType
	body := rec[headerLen:]
	body[0] = code
	body[1] = length
	copy(body[2:6], name)
	copy(body[6:22], format)
	copy(body[22:86], columns)
	return rec
}

// gpsFmt declares a GPS layout: TimeUS (Q), Lat (L), Lng (L), Spd (f).
func gpsFmt(t *testing.T) []byte {
	return fmtRecord(t, 10, 23, "GPS", "QLLf", "TimeUS,Lat,Lng,Spd")
}

func gpsRecord(t *testing.T, timeUs uint64, lat, lng int32, spd float32) []byte {
	t.Helper()
	rec := []byte{head1, head2, 10}
	rec = binary.LittleEndian.AppendUint64(rec, timeUs)
	rec = binary.LittleEndian.AppendUint32(rec, uint32(lat))
	rec = binary.LittleEndian.AppendUint32(rec, uint32(lng))
	rec = binary.LittleEndian.AppendUint32(rec, math.Float32bits(spd))
	return rec
}

func parseData(t *testing.T, data []byte) *logdata.RawBatch {
	t.Helper()
	batch, err := Decoder{}.Parse(context.Background(), data, config.Default())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return batch
}

func dfSeries(t *testing.T, batch *logdata.RawBatch, msg, field string) *logdata.RawSeries {
	t.Helper()
	for _, s := range batch.Series {
		if s.Key.Message == msg && s.Key.Field == field {
			return s
		}
	}
	t.Fatalf("series %s.%s not found", msg, field)
	return nil
}

func TestParseSelfDescribingStream(t *testing.T) {
	var data []byte
	data = append(data, gpsFmt(t)...)
	data = append(data, gpsRecord(t, 1_000_000, 473977000, 85456000, 12.5)...)
	data = append(data, gpsRecord(t, 2_500_000, 473978000, 85457000, 13.0)...)
	batch := parseData(t, data)

	lat := dfSeries(t, batch, "GPS", "Lat")
	if len(lat.Samples) != 2 {
		t.Fatalf("Lat has %d samples, want 2", len(lat.Samples))
	}
	if lat.Samples[0].Num != 473977000 {
		t.Errorf("Lat[0] = %v, want 473977000", lat.Samples[0].Num)
	}
	// Elapsed time from TimeUS.
	if lat.Samples[0].Time != 0 || math.Abs(lat.Samples[1].Time-1.5) > 1e-9 {
		t.Errorf("times = %v, %v; want 0, 1.5", lat.Samples[0].Time, lat.Samples[1].Time)
	}
	// L fields default to the degE7 unit tag when no FMTU arrives.
	if lat.Unit != "degE7" {
		t.Errorf("Lat unit = %q, want degE7", lat.Unit)
	}
	// TimeUS itself is the time axis, never a series.
	for _, s := range batch.Series {
		if s.Key.Field == "TimeUS" {
			t.Error("TimeUS emitted as series")
		}
	}
	spd := dfSeries(t, batch, "GPS", "Spd")
	if math.Abs(spd.Samples[1].Num-13.0) > 1e-6 {
		t.Errorf("Spd[1] = %v, want 13.0", spd.Samples[1].Num)
	}
}

func TestParseFixedPointFields(t *testing.T) {
	// 'c' is int16 x100 fixed point; the decode divides it out.
	var data []byte
	data = append(data, fmtRecord(t, 11, 13, "ATT", "Qc", "TimeUS,Roll")...)
	rec := []byte{head1, head2, 11}
	rec = binary.LittleEndian.AppendUint64(rec, 1_000_000)
	fixedVal := int16(-1234)
	rec = binary.LittleEndian.AppendUint16(rec, uint16(fixedVal))
	data = append(data, rec...)
	batch := parseData(t, data)

	roll := dfSeries(t, batch, "ATT", "Roll")
	if math.Abs(roll.Samples[0].Num-(-12.34)) > 1e-9 {
		t.Fatalf("Roll = %v, want -12.34", roll.Samples[0].Num)
	}
}

func TestParseAppliesUnitDeclarations(t *testing.T) {
	var data []byte
	data = append(data, gpsFmt(t)...)
	// FMTU layout: TimeUS (Q), FmtType (B), UnitIds (N), MultIds (N).
	data = append(data, fmtRecord(t, 12, 44, "FMTU", "QBNN", "TimeUS,FmtType,UnitIds,MultIds")...)
	fmtu := []byte{head1, head2, 12}
	fmtu = binary.LittleEndian.AppendUint64(fmtu, 500_000)
	fmtu = append(fmtu, 10) // references the GPS layout
	unitIds := make([]byte, 16)
	copy(unitIds, "sDUn")
	fmtu = append(fmtu, unitIds...)
	fmtu = append(fmtu, make([]byte, 16)...) // MultIds ignored
	data = append(data, fmtu...)
	data = append(data, gpsRecord(t, 1_000_000, 473977000, 85456000, 12.5)...)
	batch := parseData(t, data)

	lat := dfSeries(t, batch, "GPS", "Lat")
	if lat.Unit != "deglatitude" {
		t.Errorf("Lat unit = %q, want deglatitude", lat.Unit)
	}
	lng := dfSeries(t, batch, "GPS", "Lng")
	if lng.Unit != "deglongitude" {
		t.Errorf("Lng unit = %q, want deglongitude", lng.Unit)
	}
	spd := dfSeries(t, batch, "GPS", "Spd")
	if spd.Unit != "m/s" {
		t.Errorf("Spd unit = %q, want m/s", spd.Unit)
	}
}

func TestParseSkipsUnknownTypeCodes(t *testing.T) {
	var data []byte
	data = append(data, gpsFmt(t)...)
	data = append(data, head1, head2, 0x42, 0x01, 0x02) // undeclared type
	data = append(data, gpsRecord(t, 1_000_000, 1, 2, 0)...)
	batch := parseData(t, data)

	if batch.TypesSeen["TYPE_66"] == 0 {
		t.Errorf("TypesSeen = %v, want TYPE_66 counted", batch.TypesSeen)
	}
	if batch.SkippedRecords == 0 {
		t.Error("SkippedRecords = 0, want nonzero")
	}
	lat := dfSeries(t, batch, "GPS", "Lat")
	if len(lat.Samples) != 1 {
		t.Fatalf("Lat has %d samples after resync, want 1", len(lat.Samples))
	}
}

func TestParseToleratesTruncatedTail(t *testing.T) {
	var data []byte
	data = append(data, gpsFmt(t)...)
	const records = 20
	for i := 0; i < records; i++ {
		data = append(data, gpsRecord(t, uint64(1_000_000+i*100_000), 473977000, 85456000, 10)...)
	}
	data = data[:len(data)-10] // chop the last record mid-body
	batch := parseData(t, data)

	lat := dfSeries(t, batch, "GPS", "Lat")
	if len(lat.Samples) != records-1 {
		t.Fatalf("Lat has %d samples, want %d", len(lat.Samples), records-1)
	}
	if batch.SkippedRecords == 0 {
		t.Error("SkippedRecords = 0, want nonzero for truncated tail")
	}
}

func TestParseUnselectedTypesCountedNotImported(t *testing.T) {
	var data []byte
	data = append(data, fmtRecord(t, 13, 13, "IMU", "Qh", "TimeUS,AccX")...)
	rec := []byte{head1, head2, 13}
	rec = binary.LittleEndian.AppendUint64(rec, 1_000_000)
	rec = binary.LittleEndian.AppendUint16(rec, 100)
	data = append(data, rec...)
	batch := parseData(t, data)

	if !batch.Empty() {
		t.Fatal("unselected type produced series")
	}
	if batch.TypesSeen["IMU"] != 1 {
		t.Fatalf("TypesSeen = %v, want IMU counted", batch.TypesSeen)
	}
}

func TestRegisterRejectsBadDeclarations(t *testing.T) {
	reg := newRegistry()
	bad := make([]byte, fmtRecordLen-headerLen)
	bad[0] = 20
	bad[1] = 10
	copy(bad[2:6], "BAD")
	copy(bad[6:22], "Q!") // unknown format char
	copy(bad[22:86], "TimeUS,X")
	if reg.register(bad) {
		t.Fatal("register accepted unknown format char")
	}
	if _, ok := reg.lookup(20); ok {
		t.Fatal("rejected declaration still registered")
	}
}

func TestParseEmptyInput(t *testing.T) {
	if !parseData(t, nil).Empty() {
		t.Fatal("empty input produced series")
	}
}
