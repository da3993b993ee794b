// Package detect selects a decoder for a log file from its content and,
// failing that, its extension. Detection never fails hard: ambiguous input
// yields FormatUnrecognized, a recoverable, user-reported condition.
package detect

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"example.com/flightlog/internal/logdata"
)

const (
	dataflashHead1 = 0xA3
	dataflashHead2 = 0x95

	mavlinkMagicV1 = 0xFE
	mavlinkMagicV2 = 0xFD

	// tlog captures prefix every frame with an 8-byte timestamp.
	tlogPrefixLen = 8
)

// Detect inspects the leading bytes of a file and returns the format kind.
// Binary signatures win over the extension, so a dataflash log renamed to
// .csv still selects the dataflash decoder.
func Detect(path string, head []byte) logdata.FormatKind {
	if kind, ok := detectBySignature(head); ok {
		return kind
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return logdata.FormatTextCsv
	case ".tlog":
		return logdata.FormatBinaryTelemetry
	case ".bin", ".log":
		return logdata.FormatDataflashBinary
	}
	if looksLikeText(head) {
		return logdata.FormatTextCsv
	}
	return logdata.FormatUnrecognized
}

func detectBySignature(head []byte) (logdata.FormatKind, bool) {
	if len(head) >= 3 && head[0] == dataflashHead1 && head[1] == dataflashHead2 {
		return logdata.FormatDataflashBinary, true
	}
	if len(head) >= 1 && (head[0] == mavlinkMagicV1 || head[0] == mavlinkMagicV2) {
		return logdata.FormatBinaryTelemetry, true
	}
	if len(head) > tlogPrefixLen && (head[tlogPrefixLen] == mavlinkMagicV1 || head[tlogPrefixLen] == mavlinkMagicV2) {
		return logdata.FormatBinaryTelemetry, true
	}
	return logdata.FormatUnrecognized, false
}

// looksLikeText is the fail-closed fallback for unrecognized extensions:
// the first line must be valid UTF-8, contain a delimiter, and no NUL bytes.
func looksLikeText(head []byte) bool {
	if len(head) == 0 {
		return false
	}
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	if bytes.IndexByte(line, 0x00) >= 0 {
		return false
	}
	if !utf8.Valid(line) {
		return false
	}
	return bytes.IndexByte(line, ',') >= 0
}
