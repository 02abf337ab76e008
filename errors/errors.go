package errors

import (
	"fmt"
	"strings"
)

// Op indicates which channel operation produced the error
type Op string

const (
	OpOpen      Op = "open"      // backend open / create
	OpRead      Op = "read"      // read, gets, refill
	OpWrite     Op = "write"     // write, puts
	OpFlush     Op = "flush"     // explicit or implicit flush
	OpClose     Op = "close"     // teardown
	OpSeek      Op = "seek"      // seek / tell
	OpConfigure Op = "configure" // channel settings
	OpCopy      Op = "copy"      // bulk copy
	OpConnect   Op = "connect"   // socket connect
	OpAccept    Op = "accept"    // server socket accept
	OpRegister  Op = "register"  // channel table
)

// Kind categorizes the error
type Kind string

const (
	KindBusy            Kind = "busy"
	KindWrongMode       Kind = "wrong_mode"
	KindClosed          Kind = "closed"
	KindInvalidArgument Kind = "invalid_argument"
	KindIO              Kind = "io"
	KindUnsupported     Kind = "unsupported"
	KindNotFound        Kind = "not_found"
	KindExists          Kind = "exists"
	KindIsDirectory     Kind = "is_directory"
	KindPermission      Kind = "permission"
	KindChildStatus     Kind = "child_status"
	KindNotConnected    Kind = "not_connected"
)

// Code is the POSIX mnemonic reported to scripts alongside the message
type Code string

const (
	EINVAL Code = "EINVAL"
	EFAULT Code = "EFAULT"
	EACCES Code = "EACCES"
	ENOENT Code = "ENOENT"
	EEXIST Code = "EEXIST"
	EISDIR Code = "EISDIR"
	ECHILD Code = "ECHILD"
	EIO    Code = "EIO"
)

// Error is the structured error type used by every channel package
type Error struct {
	Cause    error
	Op       Op
	Kind     Kind
	Code     Code
	Channel  string
	Detail   string
	ExitCode int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Detail != "" {
		b.WriteString(e.Detail)
	} else {
		b.WriteString("error during ")
		b.WriteString(string(e.Op))
		if e.Channel != "" {
			b.WriteString(" on \"")
			b.WriteString(e.Channel)
			b.WriteByte('"')
		}
		if e.Kind != "" {
			b.WriteString(": ")
			b.WriteString(strings.ReplaceAll(string(e.Kind), "_", " "))
		}
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Empty fields on the target act as wildcards.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind != "" || t.Op != "" || t.Code != ""
}

// Sentinels for errors.Is checks.
var (
	ErrBusy            = &Error{Kind: KindBusy}
	ErrWrongMode       = &Error{Kind: KindWrongMode}
	ErrClosed          = &Error{Kind: KindClosed}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrIO              = &Error{Kind: KindIO}
	ErrUnsupported     = &Error{Kind: KindUnsupported}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrExists          = &Error{Kind: KindExists}
	ErrIsDirectory     = &Error{Kind: KindIsDirectory}
	ErrPermission      = &Error{Kind: KindPermission}
	ErrChildStatus     = &Error{Kind: KindChildStatus}
	ErrNotConnected    = &Error{Kind: KindNotConnected}
)

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(op Op, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Op:   op,
			Kind: kind,
		},
	}
}

// Channel sets the channel name
func (b *Builder) Channel(name string) *Builder {
	b.err.Channel = name
	return b
}

// Code sets the POSIX mnemonic
func (b *Builder) Code(c Code) *Builder {
	b.err.Code = c
	return b
}

// ExitCode sets the child exit status
func (b *Builder) ExitCode(code int) *Builder {
	b.err.ExitCode = code
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common channel failures

// Busy reports that another execution context owns the direction
func Busy(op Op, channel string) *Error {
	return &Error{
		Op:      op,
		Kind:    KindBusy,
		Channel: channel,
		Detail:  "channel is busy",
	}
}

// NotReadable reports a read on a channel opened without read access
func NotReadable(channel string) *Error {
	return &Error{
		Op:      OpRead,
		Kind:    KindWrongMode,
		Channel: channel,
		Detail:  fmt.Sprintf("channel %q wasn't opened for reading", channel),
	}
}

// NotWritable reports a write on a channel opened without write access
func NotWritable(channel string) *Error {
	return &Error{
		Op:      OpWrite,
		Kind:    KindWrongMode,
		Channel: channel,
		Detail:  fmt.Sprintf("channel %q wasn't opened for writing", channel),
	}
}

// Closed reports an operation on a closed channel
func Closed(op Op, channel string) *Error {
	return &Error{
		Op:      op,
		Kind:    KindClosed,
		Channel: channel,
		Detail:  fmt.Sprintf("channel %q is closed", channel),
	}
}

// Seek reports a failed seek with its POSIX code
func Seek(channel string, code Code, cause error) *Error {
	kind := KindIO
	switch code {
	case EINVAL, EFAULT:
		kind = KindInvalidArgument
	case EACCES:
		kind = KindPermission
	}
	return &Error{
		Op:      OpSeek,
		Kind:    kind,
		Code:    code,
		Channel: channel,
		Detail:  fmt.Sprintf("error during seek on %q: %s", channel, codeText(code)),
		Cause:   cause,
	}
}

// IO wraps a backend failure with channel context
func IO(op Op, channel string, cause error) *Error {
	verb := map[Op]string{
		OpRead:  "reading",
		OpWrite: "writing",
		OpFlush: "flushing",
		OpClose: "closing",
		OpCopy:  "copying",
	}[op]
	if verb == "" {
		verb = string(op) + "ing"
	}
	return &Error{
		Op:      op,
		Kind:    KindIO,
		Code:    EIO,
		Channel: channel,
		Detail:  fmt.Sprintf("error %s %q", verb, channel),
		Cause:   cause,
	}
}

// Open reports a backend that could not be opened
func Open(what string, kind Kind, code Code, cause error) *Error {
	detail := fmt.Sprintf("couldn't open %q", what)
	if cause == nil {
		detail += ": " + codeText(code)
	}
	return &Error{
		Op:     OpOpen,
		Kind:   kind,
		Code:   code,
		Detail: detail,
		Cause:  cause,
	}
}

// ChildStatus reports a child process that exited with a non-zero status
func ChildStatus(exitCode int, stderr string) *Error {
	detail := "child process exited abnormally"
	if s := strings.TrimSuffix(stderr, "\n"); s != "" {
		detail = s
	}
	return &Error{
		Op:       OpClose,
		Kind:     KindChildStatus,
		Code:     ECHILD,
		Detail:   detail,
		ExitCode: exitCode,
	}
}

// InvalidArgument reports a bad option or argument value
func InvalidArgument(op Op, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Op:     op,
		Kind:   KindInvalidArgument,
		Code:   EINVAL,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(op Op, what string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(op Op, kind Kind, cause error, detail string) *Error {
	return &Error{
		Op:     op,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

func codeText(code Code) string {
	switch code {
	case EINVAL:
		return "invalid argument"
	case EFAULT:
		return "bad address"
	case EACCES:
		return "permission denied"
	case ENOENT:
		return "no such file or directory"
	case EEXIST:
		return "file exists"
	case EISDIR:
		return "illegal operation on a directory"
	case ECHILD:
		return "no child processes"
	default:
		return "input/output error"
	}
}
