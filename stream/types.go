package stream

import (
	"runtime"
	"strings"
)

// Translation is an end-of-line convention applied on read or write.
type Translation uint8

const (
	Auto Translation = iota
	Binary
	LF
	CR
	CRLF
)

// Platform returns the native end-of-line translation.
func Platform() Translation {
	if runtime.GOOS == "windows" {
		return CRLF
	}
	return LF
}

// ParseTranslation maps a translation name to its value.
// "platform" resolves to the native translation.
func ParseTranslation(s string) (Translation, bool) {
	switch strings.ToLower(s) {
	case "auto":
		return Auto, true
	case "binary":
		return Binary, true
	case "lf":
		return LF, true
	case "cr":
		return CR, true
	case "crlf":
		return CRLF, true
	case "platform":
		return Platform(), true
	}
	return 0, false
}

// String reports binary as "lf", matching what scripts read back.
func (t Translation) String() string {
	switch t {
	case Auto:
		return "auto"
	case Binary, LF:
		return "lf"
	case CR:
		return "cr"
	case CRLF:
		return "crlf"
	}
	return "unknown"
}

// Buffering selects when buffered data moves between the channel and its backend.
type Buffering uint8

const (
	Full Buffering = iota
	Line
	None
)

// ParseBuffering maps a buffering name to its value.
func ParseBuffering(s string) (Buffering, bool) {
	switch strings.ToLower(s) {
	case "full":
		return Full, true
	case "line":
		return Line, true
	case "none":
		return None, true
	}
	return 0, false
}

func (b Buffering) String() string {
	switch b {
	case Full:
		return "full"
	case Line:
		return "line"
	case None:
		return "none"
	}
	return "unknown"
}

const (
	// DefaultBufferSize is the initial buffer size of every channel.
	DefaultBufferSize = 4096
	// MinBufferSize and MaxBufferSize bound accepted buffer sizes.
	MinBufferSize = 1
	MaxBufferSize = 1 << 20
)

// eolByte ends a line-buffered refill.
const eolByte = '\n'
