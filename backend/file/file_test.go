package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fortytw2/leaktest"

	"github.com/wippyai/chanio/channel"
	chanerrors "github.com/wippyai/chanio/errors"
)

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "exists")
	if err := os.WriteFile(existing, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		mode channel.Mode
		kind error
		msg  string
	}{
		{"missing", filepath.Join(dir, "nope"), channel.ModeRead, chanerrors.ErrNotFound,
			`couldn't open "` + filepath.Join(dir, "nope") + `": no such file or directory`},
		{"exclusive", existing, channel.ModeWrite | channel.ModeCreate | channel.ModeExclusive, chanerrors.ErrExists,
			`couldn't open "` + existing + `": file exists`},
		{"directory", dir, channel.ModeRead, chanerrors.ErrIsDirectory,
			`couldn't open "` + dir + `": illegal operation on a directory`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.path, tt.mode, 0o644)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v", err)
			}
			if err.Error() != tt.msg {
				t.Errorf("message = %q, want %q", err, tt.msg)
			}
		})
	}
}

func TestWriteThenRead(t *testing.T) {
	defer leaktest.Check(t)()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.txt")

	mode, err := channel.ParseAccess("w")
	if err != nil {
		t.Fatal(err)
	}
	w, err := Open(path, mode, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteString(ctx, "alpha\nbeta\n"); err != nil {
		t.Fatal(err)
	}
	if err := w.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path, channel.ModeRead, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.Type() != "file" {
		t.Errorf("type = %q", r.Type())
	}
	first, _, err := r.Gets(ctx)
	if err != nil || first != "alpha" {
		t.Fatalf("Gets = %q, %v", first, err)
	}
	if pos := r.Tell(); pos != 6 {
		t.Errorf("Tell = %d, want 6", pos)
	}
	if err := r.Seek(ctx, 0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	all, _, err := r.ReadAll(ctx)
	if err != nil || all != "alpha\nbeta\n" {
		t.Fatalf("ReadAll = %q, %v", all, err)
	}
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "log")
	if err := os.WriteFile(path, []byte("one\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	mode, _ := channel.ParseAccess("a")
	c, err := Open(path, mode, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.WriteString(ctx, "two\n"); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "one\ntwo\n" {
		t.Errorf("file = %q", data)
	}
}

func TestAvailableTracksPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := OpenBackend(path, channel.ModeRead, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	src, _ := b.Reader()
	if n, _ := src.Available(); n != 10 {
		t.Fatalf("Available = %d", n)
	}
	buf := make([]byte, 4)
	if _, err := src.Read(buf); err != nil {
		t.Fatal(err)
	}
	if n, _ := src.Available(); n != 6 {
		t.Errorf("Available after read = %d", n)
	}
	if end, _ := b.End(); end != 10 {
		t.Errorf("End = %d", end)
	}
}
