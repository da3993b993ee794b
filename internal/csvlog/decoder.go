// Package csvlog decodes delimited text logs: FrSky Ethos CSV, OpenTX CSV
// and generic CSV files with a header row.
package csvlog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"example.com/flightlog/internal/config"
	"example.com/flightlog/internal/logdata"
)

// Stage names this decoder in DecodeError reports.
const Stage = "csv"

const (
	dateColumn    = "Date"
	timeColumn    = "Time"
	elapsedColumn = "ElapsedTime"

	// gpsColumn is the composite "lat lon" string column written by Ethos
	// radios. It splits into two series before emission.
	gpsColumn    = "GPS"
	gpsLatColumn = "GPS.Latitude"
	gpsLonColumn = "GPS.Longitude"
)

// timeOfDayRe matches HH:MM:SS with an optional fraction. Files that went
// through a spreadsheet often lose the hour field; those get "12:"
// prepended, mirroring how the radios emit a 12-hour default.
var timeOfDayRe = regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}(\.\d+)?$`)

// Decoder parses delimited text logs into raw series.
type Decoder struct{}

func (Decoder) Name() string { return Stage }

// Parse reads the whole CSV document. Rows whose field count does not match
// the header are skipped and counted; a column with zero numeric cells is
// still emitted and left for the normalizer to drop.
func (Decoder) Parse(ctx context.Context, data []byte, cfg *config.Config) (*logdata.RawBatch, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return logdata.NewRawBatch(), nil
		}
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	batch := logdata.NewRawBatch()
	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				batch.SkippedRecords++
				continue
			}
			return nil, err
		}
		if len(row) != len(header) {
			batch.SkippedRecords++
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return batch, nil
	}

	cols := columnIndex(header)
	times := buildTimeAxis(header, rows, cols, batch)

	for i, name := range header {
		if name == "" || name == dateColumn || name == timeColumn {
			batch.TypesSeen[name]++
			continue
		}
		batch.TypesSeen[name]++
		if name == gpsColumn {
			lat, lon := splitComposite(rows, i, times)
			batch.Series = append(batch.Series, lat, lon)
			batch.TypesImported = append(batch.TypesImported, gpsLatColumn, gpsLonColumn)
			continue
		}
		series := &logdata.RawSeries{Key: logdata.RawKey{Field: name}}
		for rowIdx, row := range rows {
			series.Samples = append(series.Samples, parseCell(row[i], times[rowIdx]))
		}
		batch.Series = append(batch.Series, series)
		batch.TypesImported = append(batch.TypesImported, name)
	}
	return batch, nil
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return idx
}

func parseCell(cell string, t float64) logdata.RawSample {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return logdata.RawSample{Time: t}
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return logdata.RawSample{Time: t, Num: v, Numeric: true}
	}
	return logdata.RawSample{Time: t, Str: cell}
}

// splitComposite turns one "lat lon" string column into two raw series.
func splitComposite(rows [][]string, col int, times []float64) (*logdata.RawSeries, *logdata.RawSeries) {
	lat := &logdata.RawSeries{Key: logdata.RawKey{Field: gpsLatColumn}}
	lon := &logdata.RawSeries{Key: logdata.RawKey{Field: gpsLonColumn}}
	for rowIdx, row := range rows {
		parts := strings.Fields(row[col])
		if len(parts) >= 2 {
			lat.Samples = append(lat.Samples, parseCell(parts[0], times[rowIdx]))
			lon.Samples = append(lon.Samples, parseCell(parts[1], times[rowIdx]))
		} else {
			lat.Samples = append(lat.Samples, logdata.RawSample{Time: times[rowIdx]})
			lon.Samples = append(lon.Samples, logdata.RawSample{Time: times[rowIdx]})
		}
	}
	return lat, lon
}

// buildTimeAxis derives elapsed seconds for every row. Preference order:
// an ElapsedTime column from a previously exported file, then Date+Time
// columns, then a synthesized one-sample-per-second axis (flagged in the
// batch, not an error).
func buildTimeAxis(header []string, rows [][]string, cols map[string]int, batch *logdata.RawBatch) []float64 {
	times := make([]float64, len(rows))

	if i, ok := cols[elapsedColumn]; ok {
		usable := false
		last := 0.0
		for rowIdx, row := range rows {
			if v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64); err == nil {
				last = v
				usable = true
			}
			times[rowIdx] = last
		}
		if usable {
			return times
		}
	}

	timeIdx, hasTime := cols[timeColumn]
	if hasTime {
		dateIdx, hasDate := cols[dateColumn]
		var first time.Time
		var haveFirst bool
		last := 0.0
		for rowIdx, row := range rows {
			abs, ok := parseRowTime(row, timeIdx, dateIdx, hasDate)
			if ok {
				if !haveFirst {
					first = abs
					haveFirst = true
				}
				last = abs.Sub(first).Seconds()
			}
			times[rowIdx] = last
		}
		if haveFirst {
			return times
		}
	}

	batch.SyntheticTime = true
	for rowIdx := range rows {
		times[rowIdx] = float64(rowIdx)
	}
	return times
}

func parseRowTime(row []string, timeIdx, dateIdx int, hasDate bool) (time.Time, bool) {
	raw := strings.TrimSpace(row[timeIdx])
	if raw == "" {
		return time.Time{}, false
	}
	if !timeOfDayRe.MatchString(raw) {
		repaired := "12:" + raw
		if !timeOfDayRe.MatchString(repaired) {
			return time.Time{}, false
		}
		raw = repaired
	}
	tod, err := time.Parse("15:04:05", raw)
	if err != nil {
		return time.Time{}, false
	}
	day := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if hasDate {
		if d, err := time.Parse("2006-01-02", strings.TrimSpace(row[dateIdx])); err == nil {
			day = d
		}
	}
	return day.Add(time.Duration(tod.Hour())*time.Hour +
		time.Duration(tod.Minute())*time.Minute +
		time.Duration(tod.Second())*time.Second +
		time.Duration(tod.Nanosecond())), true
}
