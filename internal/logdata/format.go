package logdata

// FormatKind identifies which decoder handles a file.
type FormatKind string

const (
	FormatTextCsv         FormatKind = "csv"
	FormatBinaryTelemetry FormatKind = "telemetry"
	FormatDataflashBinary FormatKind = "dataflash"
	FormatUnrecognized    FormatKind = "unrecognized"
)

func (k FormatKind) String() string { return string(k) }
