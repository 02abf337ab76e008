// Package channel implements buffered, translated, optionally non-blocking
// channels over pluggable backends.
//
// A Channel owns two lazily built pipelines of stream stages, one per
// direction. Reads and writes claim their direction for an Owner; callers
// that want to hold a direction across calls attach one with WithOwner,
// every other caller gets a one-shot token and fails fast with a busy error
// while the direction is held elsewhere.
//
// Settings can be changed through typed setters or the textual surface:
//
//	ch.Configure("-translation", "auto crlf")
//	ch.Configure("-encoding", "iso8859-1")
//	v, _ := ch.Option("-buffering")
//
// Copy and CopyAsync move data between two channels, keeping both
// directions claimed for the duration.
package channel
