package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/wippyai/chanio/channel"
	chanerrors "github.com/wippyai/chanio/errors"
	"github.com/wippyai/chanio/stream"
)

func TestReaderIsRawAndReadOnly(t *testing.T) {
	ctx := context.Background()
	c := NewReader([]byte("caf\xc3\xa9\n"))
	defer c.Close()

	if c.Type() != "bytearray" {
		t.Errorf("type = %q", c.Type())
	}
	if c.Encoding() != nil {
		t.Errorf("encoding = %v, want raw", c.Encoding().Name())
	}
	line, n, err := c.Gets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// raw bytes map one to one onto characters
	if line != "cafÃ©" || n != 5 {
		t.Errorf("Gets = %q, %d", line, n)
	}
	if err := c.WriteString(ctx, "x"); !errors.Is(err, chanerrors.ErrWrongMode) {
		t.Errorf("write = %v", err)
	}
}

func TestReaderWithEncoding(t *testing.T) {
	c := NewReader([]byte("caf\xc3\xa9"), channel.WithEncoding(stream.MustEncoding("utf-8")))
	defer c.Close()
	s, _, err := c.ReadAll(context.Background())
	if err != nil || s != "café" {
		t.Fatalf("ReadAll = %q, %v", s, err)
	}
}

func TestWriterCollects(t *testing.T) {
	ctx := context.Background()
	c, w := NewWriter(channel.WithTranslation(stream.LF, stream.CRLF))
	if err := c.WriteString(ctx, "a\nb"); err != nil {
		t.Fatal(err)
	}
	if w.Len() != 0 {
		t.Errorf("full buffering wrote %d bytes early", w.Len())
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if got := w.String(); got != "a\r\nb" {
		t.Errorf("collected %q", got)
	}
	if _, _, err := c.Gets(ctx); !errors.Is(err, chanerrors.ErrClosed) {
		t.Errorf("Gets after close = %v", err)
	}
}
