package channel

import (
	"errors"
	"io"
	"os"
	"testing"

	chanerrors "github.com/wippyai/chanio/errors"
	"github.com/wippyai/chanio/stream"
)

func TestSeekTell(t *testing.T) {
	c, _ := openTestFile(t, "hello world", ModeRead)
	defer closeChannel(t, c)

	if got, _, err := c.ReadN(bg, 5); err != nil || got != "hello" {
		t.Fatalf("ReadN = %q, %v", got, err)
	}
	if pos := c.Tell(); pos != 5 {
		t.Fatalf("Tell after 5 chars = %d", pos)
	}

	if err := c.Seek(bg, 1, io.SeekCurrent); err != nil {
		t.Fatal(err)
	}
	if pos := c.Tell(); pos != 6 {
		t.Fatalf("Tell after relative seek = %d", pos)
	}
	if got, _, _ := c.ReadN(bg, 5); got != "world" {
		t.Fatalf("read after relative seek = %q", got)
	}

	if err := c.Seek(bg, -3, io.SeekEnd); err != nil {
		t.Fatal(err)
	}
	if got, _, _ := c.ReadAll(bg); got != "rld" {
		t.Fatalf("read after seek from end = %q", got)
	}
	if !c.EOF() {
		t.Fatal("expected EOF")
	}

	if err := c.Seek(bg, 0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	if c.EOF() {
		t.Error("seek should clear EOF")
	}
	if got, _, _ := c.ReadN(bg, 1); got != "h" {
		t.Errorf("read after rewind = %q", got)
	}
}

func TestSeekNegativeTarget(t *testing.T) {
	c, _ := openTestFile(t, "abc", ModeRead)
	defer closeChannel(t, c)

	err := c.Seek(bg, -10, io.SeekStart)
	if !errors.Is(err, chanerrors.ErrInvalidArgument) {
		t.Fatalf("err = %v", err)
	}
	var ce *chanerrors.Error
	if !errors.As(err, &ce) || ce.Code != chanerrors.EINVAL {
		t.Fatalf("code = %v", err)
	}
	if err.Error() != `error during seek on "file3": invalid argument` {
		t.Errorf("message = %q", err)
	}
}

func TestSeekRefusedWhenBothSidesBuffered(t *testing.T) {
	// line buffering keeps the read-ahead in the input buffer
	c, path := openTestFile(t, "0123456789", ModeReadWrite, WithBuffering(stream.Line))

	if got, _, _ := c.ReadN(bg, 2); got != "01" {
		t.Fatalf("ReadN = %q", got)
	}
	if err := c.WriteString(bg, "x"); err != nil {
		t.Fatal(err)
	}
	if pos := c.Tell(); pos != -1 {
		t.Errorf("Tell with both sides buffered = %d, want -1", pos)
	}
	err := c.Seek(bg, 0, io.SeekStart)
	var ce *chanerrors.Error
	if !errors.As(err, &ce) || ce.Code != chanerrors.EFAULT {
		t.Fatalf("seek err = %v, want EFAULT", err)
	}
	closeChannel(t, c)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 10 {
		t.Errorf("file shrank to %q", data)
	}
}

func TestSeekFlushesOutput(t *testing.T) {
	c, path := openTestFile(t, "", ModeReadWrite)
	defer closeChannel(t, c)

	if err := c.WriteString(bg, "abcdef"); err != nil {
		t.Fatal(err)
	}
	if pos := c.Tell(); pos != 6 {
		t.Fatalf("Tell with buffered output = %d", pos)
	}
	if err := c.Seek(bg, 2, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "abcdef" {
		t.Fatalf("seek did not flush: %q", data)
	}
	got, _, err := c.ReadAll(bg)
	if err != nil {
		t.Fatal(err)
	}
	if got != "cdef" {
		t.Errorf("read after seek = %q", got)
	}
}

func TestSeekUnsupported(t *testing.T) {
	c := New("pipe0", ModeRead, newPipeBackend())
	defer closeChannel(t, c)

	if err := c.Seek(bg, 0, io.SeekStart); !errors.Is(err, chanerrors.ErrInvalidArgument) {
		t.Errorf("seek on pipe: %v", err)
	}
	if pos := c.Tell(); pos != -1 {
		t.Errorf("Tell on pipe = %d", pos)
	}
}

func TestAppendModeWritesAtEnd(t *testing.T) {
	c, path := openTestFile(t, "start", ModeReadWrite|ModeAppend)
	if err := c.Seek(bg, 0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteString(bg, "+end"); err != nil {
		t.Fatal(err)
	}
	closeChannel(t, c)

	data, _ := os.ReadFile(path)
	if string(data) != "start+end" {
		t.Errorf("file = %q", data)
	}
}

func TestTellAndRelativeSeekWithEOFChar(t *testing.T) {
	c, _ := openTestFile(t, "abcZdef", ModeRead, WithEOFChar('Z', 0))
	defer closeChannel(t, c)

	if got, _, err := c.ReadAll(bg); err != nil || got != "abc" {
		t.Fatalf("ReadAll = %q, %v", got, err)
	}
	if pos := c.Tell(); pos != 3 {
		t.Fatalf("Tell at the EOF char = %d, want 3", pos)
	}
	if err := c.Seek(bg, 0, io.SeekCurrent); err != nil {
		t.Fatal(err)
	}
	if pos := c.Tell(); pos != 3 {
		t.Fatalf("Tell after seeking in place = %d, want 3", pos)
	}

	c.SetInputEOFChar(0)
	if got, _, err := c.ReadAll(bg); err != nil || got != "Zdef" {
		t.Fatalf("ReadAll after disabling the EOF char = %q, %v", got, err)
	}
}

func TestTellCountsPeekedCharacter(t *testing.T) {
	// "a\rb\n" in UTF-16LE; the CR lookahead decodes b ahead of the reader
	c, _ := openTestFile(t, "a\x00\r\x00b\x00\n\x00", ModeRead,
		WithEncoding(stream.MustEncoding("unicode")), WithTranslation(stream.Auto, stream.Auto))
	defer closeChannel(t, c)

	if line, _, err := c.Gets(bg); err != nil || line != "a" {
		t.Fatalf("Gets = %q, %v", line, err)
	}
	if pos := c.Tell(); pos != 4 {
		t.Fatalf("Tell after the first line = %d, want 4", pos)
	}
	if err := c.Seek(bg, 0, io.SeekCurrent); err != nil {
		t.Fatal(err)
	}
	if line, _, err := c.Gets(bg); err != nil || line != "b" {
		t.Fatalf("Gets after seeking in place = %q, %v", line, err)
	}
}
