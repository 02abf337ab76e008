package channel

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	chanerrors "github.com/wippyai/chanio/errors"
	"github.com/wippyai/chanio/stream"
)

func (c *Channel) Blocking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocking
}

// SetBlocking switches blocking mode on every live stage.
func (c *Channel) SetBlocking(blocking bool) {
	c.mu.Lock()
	c.blocking = blocking
	in, out := c.in, c.out
	c.mu.Unlock()
	if in != nil {
		in.buf.SetBlocking(blocking)
		in.eol.SetBlocking(blocking)
	}
	if out != nil {
		out.bg.SetBlocking(blocking)
	}
}

func (c *Channel) Buffering() stream.Buffering {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffering
}

func (c *Channel) SetBuffering(b stream.Buffering) {
	c.mu.Lock()
	c.buffering = b
	in, out := c.in, c.out
	c.mu.Unlock()
	if in != nil {
		in.buf.SetBuffering(b)
	}
	if out != nil {
		out.buf.SetBuffering(b)
	}
}

func (c *Channel) BufferSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bufferSize
}

// SetBufferSize ignores sizes outside [stream.MinBufferSize, stream.MaxBufferSize].
// Buffers adopt the new size once they are empty.
func (c *Channel) SetBufferSize(n int) {
	if n < stream.MinBufferSize || n > stream.MaxBufferSize {
		return
	}
	c.mu.Lock()
	c.bufferSize = n
	in, out := c.in, c.out
	c.mu.Unlock()
	if in != nil {
		in.buf.SetBufferSize(n)
	}
	if out != nil {
		out.buf.SetBufferSize(n)
	}
}

// Encoding returns the channel encoding; nil means raw bytes.
func (c *Channel) Encoding() *stream.Encoding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encoding
}

// SetEncoding switches encodings. The decoder picks the change up at the
// next read, and the channel counts as readable until then.
func (c *Channel) SetEncoding(e *stream.Encoding) {
	c.mu.Lock()
	c.encoding = e
	c.encChanged = true
	in, out := c.in, c.out
	c.mu.Unlock()
	if in != nil {
		in.dec.SetEncoding(e)
	}
	if out != nil {
		out.enc.SetEncoding(e)
	}
}

func (c *Channel) InputTranslation() stream.Translation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inTrans
}

// SetInputTranslation has no effect on channels without read access.
func (c *Channel) SetInputTranslation(t stream.Translation) {
	if !c.mode.Readable() {
		return
	}
	c.mu.Lock()
	c.inTrans = t
	in := c.in
	c.mu.Unlock()
	if in != nil {
		in.eol.SetTranslation(t)
	}
}

func (c *Channel) OutputTranslation() stream.Translation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outTrans
}

// SetOutputTranslation resolves Auto to the backend default. It has no
// effect on channels without write access.
func (c *Channel) SetOutputTranslation(t stream.Translation) {
	if !c.mode.Writable() {
		return
	}
	t = c.resolveOutput(t)
	c.mu.Lock()
	c.outTrans = t
	out := c.out
	c.mu.Unlock()
	if out != nil {
		out.eol.SetTranslation(t)
	}
}

func (c *Channel) InputEOFChar() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inEOF
}

// SetInputEOFChar sets the byte that ends input; 0 disables it. Changing
// it clears end of file, and a previously swallowed EOF byte is read again.
func (c *Channel) SetInputEOFChar(b byte) {
	if !c.mode.Readable() {
		return
	}
	c.mu.Lock()
	c.inEOF = b
	c.eofSeen = false
	in := c.in
	c.mu.Unlock()
	if in != nil {
		in.eof.SetChar(b)
		in.buf.CancelEOF()
		in.dec.CancelEOF()
		in.eol.CancelEOF()
	}
}

func (c *Channel) OutputEOFChar() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outEOF
}

// SetOutputEOFChar sets the byte written when the channel closes; 0 disables it.
func (c *Channel) SetOutputEOFChar(b byte) {
	if !c.mode.Writable() {
		return
	}
	c.mu.Lock()
	c.outEOF = b
	out := c.out
	c.mu.Unlock()
	if out != nil {
		out.eof.SetChar(b)
	}
}

// Option names accepted by Configure and Option.
const (
	OptBlocking    = "-blocking"
	OptBuffering   = "-buffering"
	OptBufferSize  = "-buffersize"
	OptEncoding    = "-encoding"
	OptEOFChar     = "-eofchar"
	OptTranslation = "-translation"
	OptPeerName    = "-peername"
	OptSockName    = "-sockname"
	OptError       = "-error"
)

var commonOptions = []string{OptBlocking, OptBuffering, OptBufferSize, OptEncoding, OptEOFChar, OptTranslation}
var socketOptions = []string{OptError, OptPeerName, OptSockName}

// OptionNames lists the options this channel supports.
func (c *Channel) OptionNames() []string {
	names := append([]string(nil), commonOptions...)
	if _, ok := c.backend.(SocketInfo); ok {
		names = append(names, socketOptions...)
	}
	return names
}

func (c *Channel) badOption(name string) error {
	return chanerrors.InvalidArgument(chanerrors.OpConfigure,
		"bad option %q: should be one of %s", name, joinOr(c.OptionNames()))
}

// Configure applies one textual option.
func (c *Channel) Configure(name, value string) error {
	if err := c.checkOpen(chanerrors.OpConfigure); err != nil {
		return err
	}
	switch name {
	case OptBlocking:
		b, err := ParseBool(value)
		if err != nil {
			return err
		}
		c.SetBlocking(b)

	case OptBuffering:
		b, ok := stream.ParseBuffering(value)
		if !ok {
			return chanerrors.InvalidArgument(chanerrors.OpConfigure,
				"bad value for -buffering: must be one of full, line, or none")
		}
		c.SetBuffering(b)

	case OptBufferSize:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return chanerrors.InvalidArgument(chanerrors.OpConfigure,
				"expected integer but got %q", value)
		}
		c.SetBufferSize(n)

	case OptEncoding:
		e, err := stream.LookupEncoding(value)
		if err != nil {
			return chanerrors.InvalidArgument(chanerrors.OpConfigure,
				"unknown encoding %q", value)
		}
		c.SetEncoding(e)

	case OptEOFChar:
		in, out, err := c.pairFor(name, value)
		if err != nil {
			return err
		}
		inc, err := eofByte(in)
		if err != nil {
			return err
		}
		outc, err := eofByte(out)
		if err != nil {
			return err
		}
		c.SetInputEOFChar(inc)
		c.SetOutputEOFChar(outc)

	case OptTranslation:
		in, out, err := c.pairFor(name, value)
		if err != nil {
			return err
		}
		if c.mode.Readable() {
			t, ok := stream.ParseTranslation(in)
			if !ok {
				return badTranslation()
			}
			if t == stream.Binary {
				c.SetEncoding(nil)
			}
			c.SetInputTranslation(t)
		}
		if c.mode.Writable() {
			t, ok := stream.ParseTranslation(out)
			if !ok {
				return badTranslation()
			}
			if t == stream.Binary {
				c.SetEncoding(nil)
			}
			c.SetOutputTranslation(t)
		}

	case OptError, OptPeerName, OptSockName:
		if _, ok := c.backend.(SocketInfo); !ok {
			return c.badOption(name)
		}
		return chanerrors.InvalidArgument(chanerrors.OpConfigure,
			"option %q is read-only", name)

	default:
		return c.badOption(name)
	}
	return nil
}

// Option returns the current value of one textual option.
func (c *Channel) Option(name string) (string, error) {
	if err := c.checkOpen(chanerrors.OpConfigure); err != nil {
		return "", err
	}
	switch name {
	case OptBlocking:
		if c.Blocking() {
			return "1", nil
		}
		return "0", nil
	case OptBuffering:
		return c.Buffering().String(), nil
	case OptBufferSize:
		return strconv.Itoa(c.BufferSize()), nil
	case OptEncoding:
		return c.Encoding().Name(), nil
	case OptEOFChar:
		return c.pairString(eofString(c.InputEOFChar()), eofString(c.OutputEOFChar())), nil
	case OptTranslation:
		return c.pairString(c.InputTranslation().String(), c.OutputTranslation().String()), nil
	}

	info, ok := c.backend.(SocketInfo)
	if !ok {
		return "", c.badOption(name)
	}
	switch name {
	case OptError:
		return info.ConnectError(), nil
	case OptPeerName:
		a, err := info.PeerName()
		if err != nil {
			return "", chanerrors.IO(chanerrors.OpConfigure, c.Name(), err)
		}
		return a.String(), nil
	case OptSockName:
		a, err := info.SockName()
		if err != nil {
			return "", chanerrors.IO(chanerrors.OpConfigure, c.Name(), err)
		}
		return a.String(), nil
	}
	return "", c.badOption(name)
}

// Options returns every option with its current value.
func (c *Channel) Options() (map[string]string, error) {
	out := make(map[string]string)
	for _, name := range c.OptionNames() {
		v, err := c.Option(name)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func (a Address) String() string {
	return fmt.Sprintf("%s %s %d", a.Addr, quoteElem(a.Host), a.Port)
}

// pairFor splits an "in out" pair. A single value applies to both sides.
// Channels with one direction take a single value.
func (c *Channel) pairFor(name, value string) (string, string, error) {
	elems := splitList(value)
	switch len(elems) {
	case 0:
		return "", "", nil
	case 1:
		return elems[0], elems[0], nil
	case 2:
		if c.mode.Readable() && c.mode.Writable() {
			return elems[0], elems[1], nil
		}
	}
	return "", "", chanerrors.InvalidArgument(chanerrors.OpConfigure,
		"bad value for %s: should be a list of one or two elements", name)
}

// pairString formats a setting that differs per direction.
func (c *Channel) pairString(in, out string) string {
	switch {
	case c.mode.Readable() && c.mode.Writable():
		return quoteElem(in) + " " + quoteElem(out)
	case c.mode.Writable():
		return out
	default:
		return in
	}
}

func badTranslation() error {
	return chanerrors.InvalidArgument(chanerrors.OpConfigure,
		"bad value for -translation: must be one of auto, binary, cr, lf, crlf, or platform")
}

func eofByte(v string) (byte, error) {
	switch {
	case v == "":
		return 0, nil
	case len(v) == 1 && v[0] < 0x80:
		return v[0], nil
	}
	return 0, chanerrors.InvalidArgument(chanerrors.OpConfigure,
		"bad value for -eofchar: must be non-NUL ASCII character")
}

func eofString(b byte) string {
	if b == 0 {
		return ""
	}
	return string(rune(b))
}

// ParseBool accepts the usual script booleans: 1/0, true/false, yes/no, on/off.
func ParseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, chanerrors.InvalidArgument(chanerrors.OpConfigure,
		"expected boolean value but got %q", v)
}

// splitList splits a whitespace separated list where {} stands for an
// empty element and {x y} groups words.
func splitList(v string) []string {
	var (
		out   []string
		cur   strings.Builder
		depth int
		inTok bool
	)
	for _, r := range v {
		switch {
		case r == '{':
			if depth > 0 {
				cur.WriteRune(r)
			}
			depth++
			inTok = true
		case r == '}' && depth > 0:
			depth--
			if depth > 0 {
				cur.WriteRune(r)
			}
		case (r == ' ' || r == '\t' || r == '\n') && depth == 0:
			if inTok {
				out = append(out, cur.String())
				cur.Reset()
				inTok = false
			}
		default:
			cur.WriteRune(r)
			inTok = true
		}
	}
	if inTok {
		out = append(out, cur.String())
	}
	return out
}

func quoteElem(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n{}") {
		return "{" + s + "}"
	}
	return s
}

func joinOr(names []string) string {
	names = append([]string(nil), names...)
	sort.Strings(names)
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]
}
