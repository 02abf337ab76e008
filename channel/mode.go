package channel

import (
	"strings"

	chanerrors "github.com/wippyai/chanio/errors"
)

// Mode holds the access and open flags of a channel.
type Mode uint16

const (
	ModeRead Mode = 1 << iota
	ModeWrite
	ModeAppend
	ModeCreate
	ModeExclusive
	ModeTruncate

	ModeReadWrite = ModeRead | ModeWrite
)

func (m Mode) Readable() bool { return m&ModeRead != 0 }
func (m Mode) Writable() bool { return m&ModeWrite != 0 }

func (m Mode) String() string {
	var parts []string
	switch {
	case m.Readable() && m.Writable():
		parts = append(parts, "RDWR")
	case m.Writable():
		parts = append(parts, "WRONLY")
	default:
		parts = append(parts, "RDONLY")
	}
	for _, f := range []struct {
		bit  Mode
		name string
	}{
		{ModeAppend, "APPEND"},
		{ModeCreate, "CREAT"},
		{ModeExclusive, "EXCL"},
		{ModeTruncate, "TRUNC"},
	} {
		if m&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, " ")
}

var shortAccess = map[string]Mode{
	"r":  ModeRead,
	"r+": ModeReadWrite,
	"w":  ModeWrite | ModeCreate | ModeTruncate,
	"w+": ModeReadWrite | ModeCreate | ModeTruncate,
	"a":  ModeWrite | ModeCreate | ModeAppend,
	"a+": ModeReadWrite | ModeCreate | ModeAppend,
}

// ParseAccess parses an open access string: one of r r+ w w+ a a+, or a
// list of POSIX flags such as "WRONLY CREAT TRUNC".
func ParseAccess(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ModeRead, nil
	}
	if len(s) <= 3 && strings.ContainsAny(s[:1], "rwa") {
		// "rb", "r+b": the binary marker changes nothing here
		if m, ok := shortAccess[strings.Replace(s, "b", "", 1)]; ok {
			return m, nil
		}
		return 0, chanerrors.InvalidArgument(chanerrors.OpOpen,
			"illegal access mode %q", s)
	}

	var (
		m      Mode
		access int
	)
	for _, flag := range strings.Fields(s) {
		switch flag {
		case "RDONLY":
			m |= ModeRead
			access++
		case "WRONLY":
			m |= ModeWrite
			access++
		case "RDWR":
			m |= ModeReadWrite
			access++
		case "APPEND":
			m |= ModeAppend
		case "CREAT":
			m |= ModeCreate
		case "EXCL":
			m |= ModeExclusive
		case "TRUNC":
			m |= ModeTruncate
		case "NOCTTY", "NONBLOCK":
		default:
			return 0, chanerrors.InvalidArgument(chanerrors.OpOpen,
				"invalid access mode %q: must be RDONLY, WRONLY, RDWR, APPEND, CREAT, EXCL, NOCTTY, NONBLOCK, or TRUNC", flag)
		}
	}
	if access != 1 {
		return 0, chanerrors.InvalidArgument(chanerrors.OpOpen,
			"access mode must include either RDONLY, WRONLY, or RDWR")
	}
	return m, nil
}
