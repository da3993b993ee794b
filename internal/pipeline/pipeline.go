// Package pipeline runs the full load sequence for one file: detect the
// format, decode it, normalize the raw series against the mapping
// configuration and synthesize derived channels. The result is an immutable
// dataset; the Manager swaps it in atomically for readers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"example.com/flightlog/internal/common"
	"example.com/flightlog/internal/config"
	"example.com/flightlog/internal/csvlog"
	"example.com/flightlog/internal/dataflash"
	"example.com/flightlog/internal/derive"
	"example.com/flightlog/internal/detect"
	"example.com/flightlog/internal/logdata"
	"example.com/flightlog/internal/mavtlm"
	"example.com/flightlog/internal/normalize"
)

// headPeekLen bounds how much of the file detection inspects.
const headPeekLen = 64

// Decoder turns one file's bytes into raw series. Implementations must be
// safe for concurrent use; the config is read-only.
type Decoder interface {
	Name() string
	Parse(ctx context.Context, data []byte, cfg *config.Config) (*logdata.RawBatch, error)
}

// Loader resolves a detected format to its decoder and drives the load
// sequence. A Loader is immutable after construction and safe to share.
type Loader struct {
	cfg      *config.Config
	decoders map[logdata.FormatKind]Decoder

	// Metrics, when set, receives the per-load progress counters so a
	// caller can drive a progress printer. Nil means a private sink.
	Metrics *common.Metrics
}

// NewLoader builds a loader over the standard decoder set.
func NewLoader(cfg *config.Config) *Loader {
	return &Loader{
		cfg: cfg,
		decoders: map[logdata.FormatKind]Decoder{
			logdata.FormatTextCsv:         csvlog.Decoder{},
			logdata.FormatBinaryTelemetry: mavtlm.Decoder{},
			logdata.FormatDataflashBinary: dataflash.Decoder{},
		},
	}
}

// Load reads, detects, decodes, normalizes and derives. Returns
// ErrUnrecognizedFormat when no decoder claims the file and ErrEmptyResult
// when decoding succeeds but yields zero valid channels.
func (l *Loader) Load(ctx context.Context, path string) (*logdata.LogDataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	head := data
	if len(head) > headPeekLen {
		head = head[:headPeekLen]
	}
	kind := detect.Detect(path, head)
	if kind == logdata.FormatUnrecognized {
		return nil, fmt.Errorf("%s: %w", path, logdata.ErrUnrecognizedFormat)
	}
	dec := l.decoders[kind]

	metrics := l.Metrics
	if metrics == nil {
		metrics = common.NewMetrics()
	}
	metrics.SetTotalBytes(int64(len(data)))
	metrics.Start()
	batch, err := dec.Parse(ctx, data, l.cfg)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, logdata.NewDecodeError(dec.Name(), err)
	}
	metrics.AddBytes(int64(len(data)))
	var samples int64
	for _, s := range batch.Series {
		samples += int64(len(s.Samples))
	}
	metrics.AddRecords(samples)
	metrics.AddSkipped(int64(batch.SkippedRecords))
	metrics.Stop()
	if batch.Empty() {
		return nil, fmt.Errorf("%s: %w", path, logdata.ErrEmptyResult)
	}

	channels := normalize.Normalize(batch, l.cfg.SectionFor(kind), l.cfg)
	if len(channels) == 0 {
		return nil, fmt.Errorf("%s: %w", path, logdata.ErrEmptyResult)
	}

	byName := make(map[string]*logdata.Channel, len(channels))
	for _, ch := range channels {
		byName[ch.Name] = ch
	}
	channels = append(channels, derive.Derive(byName)...)

	meta := logdata.Metadata{
		SourcePath:     path,
		Format:         kind,
		SizeBytes:      int64(len(data)),
		LoadedAt:       time.Now(),
		SkippedRecords: batch.SkippedRecords,
		TypesSeen:      batch.TypesSeen,
		TypesImported:  batch.TypesImported,
		SyntheticTime:  batch.SyntheticTime,
	}
	meta.Duration, meta.SampleRate = timeAxisSummary(channels)

	ds := logdata.NewDataset(meta, channels)
	snap := metrics.Snapshot()
	common.Logf("loaded %s: format=%s channels=%d skipped=%d in %s (%.1f MiB/s)",
		path, kind, ds.Len(), batch.SkippedRecords,
		snap.Duration.Round(time.Millisecond),
		snap.ThroughputBytesPerSecond()/(1024*1024))
	return ds, nil
}

// timeAxisSummary reports the log duration (largest sample time seen) and
// the sample rate of the densest channel over that duration.
func timeAxisSummary(channels []*logdata.Channel) (duration, rate float64) {
	maxSamples := 0
	for _, ch := range channels {
		if n := len(ch.Samples); n > 0 {
			if t := ch.Samples[n-1].Time; t > duration {
				duration = t
			}
			if n > maxSamples {
				maxSamples = n
			}
		}
	}
	if duration > 0 {
		rate = float64(maxSamples) / duration
	}
	return duration, rate
}
