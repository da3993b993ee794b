// Package dataflash decodes Ardupilot dataflash binary logs (.bin). The
// parse is single-pass: FMT declarations populate the layout registry as
// they appear, and every declaration precedes its data records in-stream.
package dataflash

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"example.com/flightlog/internal/config"
	"example.com/flightlog/internal/logdata"
)

// Stage names this decoder in DecodeError reports.
const Stage = "dataflash"

const ctxCheckInterval = 4096

// Decoder parses dataflash records into raw series.
type Decoder struct{}

func (Decoder) Name() string { return Stage }

// Parse walks the record stream. Unregistered type codes and truncated
// records are skipped and counted; they never abort the parse. Only message
// types selected in the configuration are retained as series.
func (Decoder) Parse(ctx context.Context, data []byte, cfg *config.Config) (*logdata.RawBatch, error) {
	batch := logdata.NewRawBatch()
	reg := newRegistry()
	series := make(map[logdata.RawKey]*logdata.RawSeries)
	imported := make(map[string]bool)

	var (
		firstTimeUs float64
		haveFirstUs bool
		recordIdx   int
	)

	off := 0
	for off+headerLen <= len(data) {
		if recordIdx%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if data[off] != head1 || data[off+1] != head2 {
			next := nextHeader(data, off+1)
			if next < 0 {
				break
			}
			batch.SkippedRecords++
			off = next
			continue
		}
		code := data[off+2]

		if code == fmtType {
			if off+fmtRecordLen > len(data) {
				batch.SkippedRecords++
				break
			}
			if !reg.register(data[off+headerLen : off+fmtRecordLen]) {
				batch.SkippedRecords++
			}
			off += fmtRecordLen
			recordIdx++
			continue
		}

		def, known := reg.lookup(code)
		if !known {
			batch.TypesSeen[fmt.Sprintf("TYPE_%d", code)]++
			batch.SkippedRecords++
			next := nextHeader(data, off+1)
			if next < 0 {
				break
			}
			off = next
			continue
		}
		if off+def.length > len(data) {
			batch.SkippedRecords++
			break
		}
		body := data[off+headerLen : off+def.length]
		off += def.length
		recordIdx++
		batch.TypesSeen[def.name]++

		if def.name == "FMTU" {
			applyFMTU(reg, def, body)
		}
		if !cfg.Dataflash.Selected(def.name) {
			continue
		}

		t := float64(recordIdx - 1)
		if us, ok := recordTimeUs(def, body); ok {
			if !haveFirstUs {
				firstTimeUs = us
				haveFirstUs = true
			}
			t = (us - firstTimeUs) / 1e6
		}
		decodeRecord(def, body, t, series)
		imported[def.name] = true
	}

	keys := make([]logdata.RawKey, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, k := range keys {
		batch.Series = append(batch.Series, series[k])
	}
	for name := range imported {
		batch.TypesImported = append(batch.TypesImported, name)
	}
	sort.Strings(batch.TypesImported)
	return batch, nil
}

func nextHeader(data []byte, from int) int {
	for i := from; i+1 < len(data); i++ {
		if data[i] == head1 && data[i+1] == head2 {
			return i
		}
	}
	return -1
}

// recordTimeUs extracts the TimeUS field when the layout declares one.
func recordTimeUs(def *formatDef, body []byte) (float64, bool) {
	off := 0
	for _, fd := range def.fields {
		w := fieldSizes[fd.fc]
		if off+w > len(body) {
			return 0, false
		}
		if fd.name == "TimeUS" && (fd.fc == 'Q' || fd.fc == 'I') {
			v, _, numeric := decodeField(fd.fc, body[off:off+w])
			if numeric {
				return v, true
			}
			return 0, false
		}
		off += w
	}
	return 0, false
}

// applyFMTU decodes a FMTU record and attaches its unit tags to the
// referenced layout.
func applyFMTU(reg *registry, def *formatDef, body []byte) {
	var fmtCode uint8
	var unitIds string
	off := 0
	for _, fd := range def.fields {
		w := fieldSizes[fd.fc]
		if off+w > len(body) {
			return
		}
		switch fd.name {
		case "FmtType":
			v, _, numeric := decodeField(fd.fc, body[off:off+w])
			if !numeric || v < 0 || v > 255 {
				return
			}
			fmtCode = uint8(v)
		case "UnitIds":
			_, s, _ := decodeField(fd.fc, body[off:off+w])
			unitIds = s
		}
		off += w
	}
	if unitIds != "" {
		reg.applyUnits(fmtCode, unitIds)
	}
}

// decodeRecord appends one sample per field. TimeUS is dropped (the record
// timestamp covers it) and int16-array fields carry no channel semantics.
func decodeRecord(def *formatDef, body []byte, t float64, series map[logdata.RawKey]*logdata.RawSeries) {
	off := 0
	for _, fd := range def.fields {
		w := fieldSizes[fd.fc]
		if off+w > len(body) {
			return
		}
		if strings.HasPrefix(fd.name, "TimeUS") || fd.fc == 'a' {
			off += w
			continue
		}
		v, s, numeric := decodeField(fd.fc, body[off:off+w])
		off += w
		key := logdata.RawKey{Message: def.name, Field: fd.name}
		sr, ok := series[key]
		if !ok {
			unit := fd.unit
			if unit == "" && fd.fc == 'L' {
				unit = "degE7"
			}
			sr = &logdata.RawSeries{Key: key, Unit: unit}
			series[key] = sr
		}
		if numeric {
			sr.Samples = append(sr.Samples, logdata.RawSample{Time: t, Num: v, Numeric: true})
		} else {
			sr.Samples = append(sr.Samples, logdata.RawSample{Time: t, Str: s})
		}
	}
}

// decodeField interprets one encoded field. The c/C/e/E characters carry a
// fixed-point x100 encoding that is part of the format itself, so the
// division happens here rather than in the normalizer.
func decodeField(fc byte, b []byte) (float64, string, bool) {
	switch fc {
	case 'b':
		return float64(int8(b[0])), "", true
	case 'B', 'M':
		return float64(b[0]), "", true
	case 'h':
		return float64(int16(binary.LittleEndian.Uint16(b))), "", true
	case 'H':
		return float64(binary.LittleEndian.Uint16(b)), "", true
	case 'i', 'L':
		return float64(int32(binary.LittleEndian.Uint32(b))), "", true
	case 'I':
		return float64(binary.LittleEndian.Uint32(b)), "", true
	case 'q':
		return float64(int64(binary.LittleEndian.Uint64(b))), "", true
	case 'Q':
		return float64(binary.LittleEndian.Uint64(b)), "", true
	case 'f':
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), "", true
	case 'd':
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), "", true
	case 'c':
		return float64(int16(binary.LittleEndian.Uint16(b))) / 100, "", true
	case 'C':
		return float64(binary.LittleEndian.Uint16(b)) / 100, "", true
	case 'e':
		return float64(int32(binary.LittleEndian.Uint32(b))) / 100, "", true
	case 'E':
		return float64(binary.LittleEndian.Uint32(b)) / 100, "", true
	case 'n', 'N', 'Z':
		return 0, cstring(b), false
	}
	return 0, "", false
}
