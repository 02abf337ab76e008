// Package stream implements the stages a channel stacks between its
// backend and the caller.
//
// # Input
//
// Bytes flow up through:
//
//	backend Source -> EOFFilter -> InputBuffer -> MarkReader -> Decoder -> EOLReader
//
// The InputBuffer owns a refiller goroutine. Raw reads stop at the
// MarkReader; text reads continue through the decoder and end-of-line
// translation. Non-blocking readers never wait: a short read leaves the
// would-block flag set and schedules a background refill.
//
// # Output
//
// Text flows down through:
//
//	EOLWriter -> Encoder -> OutputBuffer -> BackgroundWriter -> EOFWriter -> backend
//
// Raw writes enter at the OutputBuffer. The BackgroundWriter performs the
// actual backend writes on its own goroutine, so non-blocking writers return
// immediately; closing it closes the backend.
//
// Every stage knows only its immediate neighbour. Reconfiguring encoding,
// translation or the EOF character changes the live stage in place.
package stream
