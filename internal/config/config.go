package config

import (
	"fmt"
	"math"
	"sort"

	"example.com/flightlog/internal/logdata"
)

// Error marks a malformed configuration. Fatal at startup, surfaced once.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("config: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func configErrorf(format string, args ...interface{}) error {
	return &Error{Err: fmt.Errorf(format, args...)}
}

// DefaultGroup receives raw keys that no mapping rule matches.
const DefaultGroup = "OTHER"

// FieldRule binds one raw field or CSV column to its canonical identity.
// Scale, when set, overrides any units-table lookup for that field.
type FieldRule struct {
	Group    string   `json:"group,omitempty" yaml:"group,omitempty"`
	BaseName string   `json:"base_name,omitempty" yaml:"base_name,omitempty"`
	Unit     string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	Scale    *float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
}

// MessageRule selects a message type for import and maps its fields.
// AllFields imports every field of the message, with Fields entries still
// applied as per-field refinements when present.
type MessageRule struct {
	Group     string               `json:"group" yaml:"group"`
	AllFields bool                 `json:"all_fields,omitempty" yaml:"all_fields,omitempty"`
	Fields    map[string]FieldRule `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Section holds the mapping tables for one input format. CSV input uses
// Columns (keyed by verbatim header); framed formats use Messages.
type Section struct {
	Columns  map[string]FieldRule   `json:"columns,omitempty" yaml:"columns,omitempty"`
	Messages map[string]MessageRule `json:"messages,omitempty" yaml:"messages,omitempty"`
}

// ScalingEntry maps a source unit tag to a canonical suffix and a
// multiplicative scale.
type ScalingEntry struct {
	Suffix string  `json:"units_suffix" yaml:"units_suffix"`
	Scale  float64 `json:"scale" yaml:"scale"`
}

// Config is the declarative mapping applied during normalization. It is
// immutable once loaded and safe to share across concurrent parses.
type Config struct {
	CSV       Section                 `json:"csv" yaml:"csv"`
	Telemetry Section                 `json:"telemetry" yaml:"telemetry"`
	Dataflash Section                 `json:"dataflash" yaml:"dataflash"`
	Scaling   map[string]ScalingEntry `json:"scaling" yaml:"scaling"`
}

// MappingRule is the resolved outcome of a raw-key lookup.
type MappingRule struct {
	Group    string
	BaseName string
	Unit     string
	Scale    *float64

	// WholeMessage is set when the match came from an all_fields message
	// rule rather than an exact field entry.
	WholeMessage bool
}

// Selected reports whether the section imports the given message type at all.
func (s *Section) Selected(message string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Messages[message]
	return ok
}

// RuleFor resolves a raw key against the section's mapping tables. Exact
// field entries win over whole-message all_fields rules. The second return
// is false when no rule matches; such keys fall into DefaultGroup verbatim.
func (s *Section) RuleFor(key logdata.RawKey) (MappingRule, bool) {
	if s == nil {
		return MappingRule{}, false
	}
	if key.Message == "" {
		fr, ok := s.Columns[key.Field]
		if !ok {
			return MappingRule{}, false
		}
		rule := MappingRule{Group: fr.Group, BaseName: fr.BaseName, Unit: fr.Unit, Scale: fr.Scale}
		if rule.BaseName == "" {
			rule.BaseName = key.Field
		}
		return rule, true
	}
	mr, ok := s.Messages[key.Message]
	if !ok {
		return MappingRule{}, false
	}
	if fr, ok := mr.Fields[key.Field]; ok {
		rule := MappingRule{Group: mr.Group, BaseName: fr.BaseName, Unit: fr.Unit, Scale: fr.Scale}
		if fr.Group != "" {
			rule.Group = fr.Group
		}
		if rule.BaseName == "" {
			rule.BaseName = key.Field
		}
		return rule, true
	}
	if mr.AllFields {
		return MappingRule{Group: mr.Group, BaseName: key.Field, WholeMessage: true}, true
	}
	return MappingRule{}, false
}

// SectionFor returns the mapping section for a detected format.
func (c *Config) SectionFor(kind logdata.FormatKind) *Section {
	if c == nil {
		return nil
	}
	switch kind {
	case logdata.FormatTextCsv:
		return &c.CSV
	case logdata.FormatBinaryTelemetry:
		return &c.Telemetry
	case logdata.FormatDataflashBinary:
		return &c.Dataflash
	default:
		return nil
	}
}

// ScalingFor looks up the units-scaling table. The second return is false
// when the tag has no entry; callers then fall back to scale 1.0 and an
// empty suffix.
func (c *Config) ScalingFor(unitTag string) (ScalingEntry, bool) {
	if c == nil || unitTag == "" {
		return ScalingEntry{}, false
	}
	entry, ok := c.Scaling[unitTag]
	return entry, ok
}

// GroupPrefixes returns the distinct group labels referenced anywhere in
// the configuration, sorted, with DefaultGroup always last.
func (c *Config) GroupPrefixes() []string {
	seen := make(map[string]bool)
	add := func(g string) {
		if g != "" && g != DefaultGroup {
			seen[g] = true
		}
	}
	for _, s := range []*Section{&c.CSV, &c.Telemetry, &c.Dataflash} {
		for _, fr := range s.Columns {
			add(fr.Group)
		}
		for _, mr := range s.Messages {
			add(mr.Group)
			for _, fr := range mr.Fields {
				add(fr.Group)
			}
		}
	}
	out := make([]string, 0, len(seen)+1)
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return append(out, DefaultGroup)
}

// Validate checks structural shape only. Unknown message or field names are
// deliberately not an error: they simply never match during normalization.
func (c *Config) Validate() error {
	for tag, entry := range c.Scaling {
		if entry.Scale == 0 || math.IsNaN(entry.Scale) || math.IsInf(entry.Scale, 0) {
			return configErrorf("scaling[%s]: scale must be a finite nonzero number", tag)
		}
	}
	sections := map[string]*Section{"csv": &c.CSV, "telemetry": &c.Telemetry, "dataflash": &c.Dataflash}
	for name, s := range sections {
		for col, fr := range s.Columns {
			if err := checkFieldRule(fr); err != nil {
				return configErrorf("%s.columns[%s]: %v", name, col, err)
			}
		}
		for msg, mr := range s.Messages {
			if mr.Group == "" {
				return configErrorf("%s.messages[%s]: group is required", name, msg)
			}
			for field, fr := range mr.Fields {
				if err := checkFieldRule(fr); err != nil {
					return configErrorf("%s.messages[%s].fields[%s]: %v", name, msg, field, err)
				}
			}
		}
	}
	return nil
}

func checkFieldRule(fr FieldRule) error {
	if fr.Scale != nil {
		v := *fr.Scale
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("scale must be a finite nonzero number")
		}
	}
	return nil
}
