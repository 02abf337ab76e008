// Package errors provides structured error types for channel I/O.
//
// Errors are categorized by Op (which channel operation failed) and Kind (error
// category). The Error type carries the channel name, an optional POSIX code
// for script-visible error codes, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.OpSeek, errors.KindInvalidArgument).
//		Channel("file3").
//		Code(errors.EINVAL).
//		Detail("error during seek on %q: invalid argument", "file3").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Busy(errors.OpRead, "sock4")
//	err := errors.NotWritable("file3")
//
// Sentinels match on Kind, so callers test categories without caring about
// the channel:
//
//	if errors.Is(err, chanerrors.ErrBusy) { ... }
package errors
