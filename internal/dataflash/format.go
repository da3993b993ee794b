package dataflash

// Dataflash logs are self-describing: FMT records declare the field layout
// of every other record type before that type's first data record appears.
// The registry below is that arena of layouts, keyed by the one-byte type
// code and populated incrementally during the parse.

const (
	head1 = 0xA3
	head2 = 0x95

	headerLen = 3

	// fmtType is the fixed type code of format-declaration records.
	fmtType = 0x80

	// fmtRecordLen covers header + Type + Length + Name[4] + Format[16] +
	// Columns[64].
	fmtRecordLen = 89
)

// fieldSizes maps an ArduPilot format character to its encoded width.
var fieldSizes = map[byte]int{
	'a': 64, // int16[32]
	'b': 1, 'B': 1,
	'h': 2, 'H': 2,
	'i': 4, 'I': 4,
	'f': 4, 'd': 8,
	'n': 4, 'N': 16, 'Z': 64,
	'c': 2, 'C': 2,
	'e': 4, 'E': 4,
	'L': 4, 'M': 1,
	'q': 8, 'Q': 8,
}

// unitNames maps FMTU unit characters to the unit tags the scaling table
// understands.
var unitNames = map[byte]string{
	'-': "",
	'?': "",
	'A': "A",
	'a': "mAh",
	'd': "deg",
	'D': "deglatitude",
	'U': "deglongitude",
	'G': "Gauss",
	'h': "degheading",
	'J': "W.s",
	'k': "deg/s",
	'm': "m",
	'n': "m/s",
	'o': "m/s/s",
	'O': "degC",
	'p': "Pa",
	'q': "rpm",
	'r': "rad",
	's': "s",
	'S': "satellites",
	'v': "V",
	'z': "Hz",
	'%': "%",
}

type fieldDef struct {
	name string
	fc   byte
	unit string
}

type formatDef struct {
	code   uint8
	name   string
	length int
	fields []fieldDef
}

// registry holds the layouts declared so far in the stream.
type registry struct {
	byCode map[uint8]*formatDef
}

func newRegistry() *registry {
	return &registry{byCode: make(map[uint8]*formatDef)}
}

func (r *registry) lookup(code uint8) (*formatDef, bool) {
	def, ok := r.byCode[code]
	return def, ok
}

// register parses the body of a FMT record (everything after the 3-byte
// header) and stores the declared layout. Declarations with an impossible
// record length or unknown format characters are rejected.
func (r *registry) register(body []byte) bool {
	if len(body) < fmtRecordLen-headerLen {
		return false
	}
	code := body[0]
	length := int(body[1])
	name := cstring(body[2:6])
	format := cstring(body[6:22])
	columns := cstring(body[22:86])
	if name == "" || length < headerLen {
		return false
	}
	names := splitColumns(columns)
	if len(names) < len(format) {
		return false
	}
	def := &formatDef{code: code, name: name, length: length}
	size := headerLen
	for i := 0; i < len(format); i++ {
		fc := format[i]
		w, ok := fieldSizes[fc]
		if !ok {
			return false
		}
		size += w
		def.fields = append(def.fields, fieldDef{name: names[i], fc: fc})
	}
	if size != length {
		// Tolerate declarations whose length disagrees with the field
		// widths only when the declared length is larger (trailing pad).
		if size > length {
			return false
		}
	}
	r.byCode[code] = def
	return true
}

// applyUnits attaches FMTU-declared unit tags to a registered layout.
func (r *registry) applyUnits(code uint8, unitIds string) {
	def, ok := r.byCode[code]
	if !ok {
		return
	}
	for i := range def.fields {
		if i >= len(unitIds) {
			break
		}
		if name, ok := unitNames[unitIds[i]]; ok {
			def.fields[i].unit = name
		}
	}
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func splitColumns(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
