// Package mavtlm decodes MAVLink telemetry captures (.tlog): each frame is
// an 8-byte big-endian microsecond timestamp followed by a MAVLink v1 or v2
// message. Captures are append-only and routinely end mid-frame, so the
// decoder skips and counts damage instead of aborting.
package mavtlm

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
const Stage = "telemetry"

const (
	magicV1 = 0xFE
	magicV2 = 0xFD

	prefixLen = 8

	v1HeaderLen = 6
	v2HeaderLen = 10
	crcLen      = 2
	sigLen      = 13

	flagSigned = 0x01

	ctxCheckInterval = 4096
)

// Decoder parses framed MAVLink telemetry into raw series.
type Decoder struct{}

func (Decoder) Name() string { return Stage }

type frame struct {
	timestampUs uint64
	msgID       uint32
	payload     []byte
	length      int
}

// Parse walks the capture frame by frame. Only message types selected in
// the configuration decode; everything else is counted in TypesSeen and
// skipped. Malformed frames resync to the next magic byte and bump the
// skipped-record count.
func (Decoder) Parse(ctx context.Context, data []byte, cfg *config.Config) (*logdata.RawBatch, error) {
	batch := logdata.NewRawBatch()
	series := make(map[logdata.RawKey]*logdata.RawSeries)
	imported := make(map[string]bool)

	var (
		firstTs   uint64
		haveFirst bool
		frameIdx  int
	)

	off := 0
	for off+prefixLen+1 < len(data) {
		if frameIdx%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		magic := data[off+prefixLen]
		if magic != magicV1 && magic != magicV2 {
			next := nextMagic(data, off+prefixLen+1)
			if next < 0 {
				break
			}
			batch.SkippedRecords++
			off = next - prefixLen
			if off < 0 {
				off = 0
			}
			continue
		}
		f, consumed, ok := parseFrame(data, off)
		if !ok {
			batch.SkippedRecords++
			next := nextMagic(data, off+prefixLen+1)
			if next < 0 {
				break
			}
			off = next - prefixLen
			if off < 0 {
				off = 0
			}
			continue
		}
		frameIdx++
		off += consumed

		def, known := dialect[f.msgID]
		typeName := fmt.Sprintf("MSG_%d", f.msgID)
		if known {
			typeName = def.Name
		}
		batch.TypesSeen[typeName]++
		if !known || !cfg.Telemetry.Selected(def.Name) {
			continue
		}

		if !haveFirst && f.timestampUs > 0 {
			firstTs = f.timestampUs
			haveFirst = true
		}
		t := float64(frameIdx - 1)
		if haveFirst && f.timestampUs >= firstTs {
			t = float64(f.timestampUs-firstTs) / 1e6
		}

		decodeFields(def, f.payload, t, series)
		imported[def.Name] = true
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

func nextMagic(data []byte, from int) int {
	for i := from; i < len(data); i++ {
		if data[i] == magicV1 || data[i] == magicV2 {
			return i
		}
	}
	return -1
}

// parseFrame decodes one timestamp-prefixed frame at off. Returns false for
// truncated or structurally impossible frames.
func parseFrame(data []byte, off int) (frame, int, bool) {
	ts := binary.BigEndian.Uint64(data[off : off+prefixLen])
	fs := off + prefixLen
	if fs+2 > len(data) {
		return frame{}, 0, false
	}
	plen := int(data[fs+1])
	switch data[fs] {
	case magicV1:
		end := fs + v1HeaderLen + plen + crcLen
		if end > len(data) {
			return frame{}, 0, false
		}
		return frame{
			timestampUs: ts,
			msgID:       uint32(data[fs+5]),
			payload:     data[fs+v1HeaderLen : fs+v1HeaderLen+plen],
			length:      plen,
		}, end - off, true
	case magicV2:
		end := fs + v2HeaderLen + plen + crcLen
		if fs+v2HeaderLen > len(data) {
			return frame{}, 0, false
		}
		if data[fs+2]&flagSigned != 0 {
			end += sigLen
		}
		if end > len(data) {
			return frame{}, 0, false
		}
		msgID := uint32(data[fs+7]) | uint32(data[fs+8])<<8 | uint32(data[fs+9])<<16
		return frame{
			timestampUs: ts,
			msgID:       msgID,
			payload:     data[fs+v2HeaderLen : fs+v2HeaderLen+plen],
			length:      plen,
		}, end - off, true
	}
	return frame{}, 0, false
}

// decodeFields appends one sample per field to the per-key series. v2
// zero-truncated payloads are zero-extended to the full wire length.
// Fields named time_* are dropped; the frame timestamp covers them.
func decodeFields(def MessageDef, payload []byte, t float64, series map[logdata.RawKey]*logdata.RawSeries) {
	wire := def.WireLen()
	if len(payload) < wire {
		padded := make([]byte, wire)
		copy(padded, payload)
		payload = padded
	}
	off := 0
	for _, fd := range def.Fields {
		count := fd.Count
		if count < 1 {
			count = 1
		}
		if strings.HasPrefix(fd.Name, "time_") {
			off += fd.size()
			continue
		}
		if fd.Type == TypeChar {
			text := strings.TrimRight(string(payload[off:off+count]), "\x00")
			key := logdata.RawKey{Message: def.Name, Field: fd.Name}
			appendSample(series, key, fd.Unit, logdata.RawSample{Time: t, Str: text})
			off += count
			continue
		}
		for i := 0; i < count; i++ {
			name := fd.Name
			if fd.Count > 1 {
				name = fmt.Sprintf("%s[%d]", fd.Name, i)
			}
			v := decodeScalar(fd.Type, payload[off:])
			key := logdata.RawKey{Message: def.Name, Field: name}
			appendSample(series, key, fd.Unit, logdata.RawSample{Time: t, Num: v, Numeric: !math.IsNaN(v)})
			off += typeSizes[fd.Type]
		}
	}
}

func appendSample(series map[logdata.RawKey]*logdata.RawSeries, key logdata.RawKey, unit string, s logdata.RawSample) {
	sr, ok := series[key]
	if !ok {
		sr = &logdata.RawSeries{Key: key, Unit: unit}
		series[key] = sr
	}
	sr.Samples = append(sr.Samples, s)
}

func decodeScalar(ft FieldType, b []byte) float64 {
	switch ft {
	case TypeUint8:
		return float64(b[0])
	case TypeInt8:
		return float64(int8(b[0]))
	case TypeUint16:
		return float64(binary.LittleEndian.Uint16(b))
	case TypeInt16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case TypeUint32:
		return float64(binary.LittleEndian.Uint32(b))
	case TypeInt32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case TypeUint64:
		return float64(binary.LittleEndian.Uint64(b))
	case TypeInt64:
		return float64(int64(binary.LittleEndian.Uint64(b)))
	case TypeFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case TypeFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return math.NaN()
}
