package channel

import (
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/chanio/stream"
)

// Lines written through a channel read back unchanged through a channel
// with the same encoding and translation, whatever the buffering.
func TestLinesRoundTrip(t *testing.T) {
	lines := []string{"alpha", "café au lait", "", "naïve", "tab\there", "last"}
	text := strings.Join(lines, "\n") + "\n"

	encodings := []string{"utf-8", "iso8859-1", "unicode", "utf-16be"}
	translations := []stream.Translation{stream.LF, stream.CR, stream.CRLF, stream.Auto}
	bufferings := []stream.Buffering{stream.Full, stream.Line, stream.None}

	for _, enc := range encodings {
		for _, tr := range translations {
			for _, b := range bufferings {
				t.Run(enc+"/"+tr.String()+"/"+b.String(), func(t *testing.T) {
					opts := []Option{
						WithEncoding(stream.MustEncoding(enc)),
						WithTranslation(tr, tr),
						WithBuffering(b),
					}

					w, path := openTestFile(t, "", ModeWrite, opts...)
					if err := w.WriteString(bg, text); err != nil {
						t.Fatal(err)
					}
					closeChannel(t, w)
					data, err := os.ReadFile(path)
					if err != nil {
						t.Fatal(err)
					}

					r, _ := openTestFile(t, string(data), ModeRead, opts...)
					defer closeChannel(t, r)
					var got []string
					for {
						line, n, err := r.Gets(bg)
						if err != nil {
							t.Fatal(err)
						}
						if n < 0 {
							break
						}
						got = append(got, line)
					}
					if diff := cmp.Diff(lines, got); diff != "" {
						t.Errorf("Gets over %q (-want +got):\n%s", data, diff)
					}

					all, _ := openTestFile(t, string(data), ModeRead, opts...)
					defer closeChannel(t, all)
					s, _, err := all.ReadAll(bg)
					if err != nil {
						t.Fatal(err)
					}
					if s != text {
						t.Errorf("ReadAll over %q = %q, want %q", data, s, text)
					}
				})
			}
		}
	}
}
