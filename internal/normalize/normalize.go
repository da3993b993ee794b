// Package normalize converts decoder output into canonical channels. This
// is the layer where all three decoders converge: it consumes only the
// RawSeries abstraction and never a concrete decoder.
package normalize

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"example.com/flightlog/internal/config"
	"example.com/flightlog/internal/logdata"
)

// Normalize applies the mapping section to every raw series: rename, group,
// scale. Unmatched keys pass through verbatim into the OTHER group,
// unscaled. Channels with zero valid numeric samples are dropped here, so
// decoders never need to care. Output order is deterministic (sorted by
// channel name).
func Normalize(batch *logdata.RawBatch, section *config.Section, cfg *config.Config) []*logdata.Channel {
	if batch == nil {
		return nil
	}
	var out []*logdata.Channel
	for _, raw := range batch.Series {
		ch := normalizeSeries(raw, section, cfg)
		if ch != nil {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func normalizeSeries(raw *logdata.RawSeries, section *config.Section, cfg *config.Config) *logdata.Channel {
	rule, matched := section.RuleFor(raw.Key)

	group := config.DefaultGroup
	base := raw.Key.String()
	suffix := ""
	scale := 1.0

	if matched {
		group = rule.Group
		if group == "" {
			group = config.DefaultGroup
		}
		base = rule.BaseName
		suffix = rule.Unit

		// Scale precedence: explicit rule override, then the units table
		// keyed by the source format's unit tag, then identity.
		if rule.Scale != nil {
			scale = *rule.Scale
			if suffix == "" {
				if entry, ok := cfg.ScalingFor(raw.Unit); ok {
					suffix = entry.Suffix
				}
			}
		} else if entry, ok := cfg.ScalingFor(raw.Unit); ok {
			scale = entry.Scale
			if suffix == "" {
				suffix = entry.Suffix
			}
		}
	}

	name := base
	if matched {
		name = ChannelName(group, base, suffix)
	}
	ch := &logdata.Channel{
		Name:   name,
		Group:  group,
		Unit:   suffix,
		Origin: logdata.OriginRaw,
	}

	valid := 0
	for _, smp := range raw.Samples {
		v := math.NaN()
		switch {
		case smp.Numeric:
			v = smp.Num
		case smp.Str != "":
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(smp.Str), 64); err == nil {
				v = parsed
			}
		}
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			if matched {
				v *= scale
			}
			valid++
		} else {
			v = math.NaN()
		}
		ch.Samples = append(ch.Samples, logdata.Sample{Time: smp.Time, Value: v})
	}
	if valid == 0 {
		return nil
	}
	return ch
}

// ChannelName assembles the canonical channel name. The unit suffix is a
// parenthetical appended only when present; the group prefix is always
// applied, matching the GROUP.Base (unit) presentation convention.
func ChannelName(group, base, suffix string) string {
	name := base
	if group != "" {
		name = group + "." + base
	}
	if suffix != "" {
		name = fmt.Sprintf("%s (%s)", name, suffix)
	}
	return name
}
