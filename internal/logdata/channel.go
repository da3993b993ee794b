package logdata

import (
	"math"
	"sort"
	"time"
)

// Origin tags how a channel entered the dataset.
type Origin string

const (
	OriginRaw     Origin = "raw"
	OriginDerived Origin = "derived"
)

// Sample is one canonical (time, value) pair. Time is seconds elapsed from
// the start of the log. Value may be NaN to mark an invalid sample while
// preserving index alignment with sibling channels from the same decode.
type Sample struct {
	Time  float64
	Value float64
}

// Valid reports whether the sample holds a usable number.
func (s Sample) Valid() bool {
	return !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0)
}

// Channel is the canonical unit of the normalized data model. Channels are
// independently time-indexed; lengths and time axes need not match across
// channels.
type Channel struct {
	Name    string
	Group   string
	Unit    string
	Origin  Origin
	Samples []Sample
}

// ValidCount returns the number of valid samples.
func (c *Channel) ValidCount() int {
	n := 0
	for _, s := range c.Samples {
		if s.Valid() {
			n++
		}
	}
	return n
}

// ChannelStats summarizes the valid samples of one channel.
type ChannelStats struct {
	Mean   float64
	Std    float64
	Min    float64
	Max    float64
	Median float64
	Count  int
}

// Stats computes summary statistics over the channel's valid samples. The
// second return is false when no valid sample exists.
func (c *Channel) Stats() (ChannelStats, bool) {
	vals := make([]float64, 0, len(c.Samples))
	for _, s := range c.Samples {
		if s.Valid() {
			vals = append(vals, s.Value)
		}
	}
	if len(vals) == 0 {
		return ChannelStats{}, false
	}
	st := ChannelStats{Count: len(vals), Min: vals[0], Max: vals[0]}
	var sum float64
	for _, v := range vals {
		sum += v
		if v < st.Min {
			st.Min = v
		}
		if v > st.Max {
			st.Max = v
		}
	}
	st.Mean = sum / float64(len(vals))
	var sq float64
	for _, v := range vals {
		d := v - st.Mean
		sq += d * d
	}
	if len(vals) > 1 {
		st.Std = math.Sqrt(sq / float64(len(vals)-1))
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		st.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		st.Median = sorted[mid]
	}
	return st, true
}

// Metadata carries file-level facts about a load, including the advisory
// counters that are available regardless of success.
type Metadata struct {
	SourcePath     string
	Format         FormatKind
	SizeBytes      int64
	LoadedAt       time.Time
	SkippedRecords int
	TypesSeen      map[string]int
	TypesImported  []string
	SyntheticTime  bool
	Duration       float64
	SampleRate     float64
}

// LogDataset is the aggregate produced by one successful load. It is
// created once, never mutated, and replaced wholesale on the next load.
type LogDataset struct {
	Meta     Metadata
	channels map[string]*Channel
	names    []string
}

// NewDataset builds a dataset from the final channel set. Channel names are
// kept in sorted order for deterministic iteration.
func NewDataset(meta Metadata, channels []*Channel) *LogDataset {
	ds := &LogDataset{
		Meta:     meta,
		channels: make(map[string]*Channel, len(channels)),
		names:    make([]string, 0, len(channels)),
	}
	for _, ch := range channels {
		if _, dup := ds.channels[ch.Name]; dup {
			continue
		}
		ds.channels[ch.Name] = ch
		ds.names = append(ds.names, ch.Name)
	}
	sort.Strings(ds.names)
	return ds
}

// Channel returns the named channel, or nil when absent.
func (d *LogDataset) Channel(name string) *Channel {
	if d == nil {
		return nil
	}
	return d.channels[name]
}

// ChannelNames returns all channel names in sorted order.
func (d *LogDataset) ChannelNames() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// ChannelsInGroup returns the channels carrying the given group label,
// sorted by name.
func (d *LogDataset) ChannelsInGroup(group string) []*Channel {
	if d == nil {
		return nil
	}
	var out []*Channel
	for _, name := range d.names {
		if ch := d.channels[name]; ch.Group == group {
			out = append(out, ch)
		}
	}
	return out
}

// Groups returns the distinct group labels present, sorted.
func (d *LogDataset) Groups() []string {
	if d == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, name := range d.names {
		g := d.channels[name].Group
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of channels.
func (d *LogDataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}
