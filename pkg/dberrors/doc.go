// Package dberrors defines the failure taxonomy shared by logs, stores and
// cursors.
//
// Every engine-level failure is surfaced as an *Error whose Kind tells the
// caller what went wrong and whose Unwrap exposes the engine's own error:
//
//	if _, err := l.Append(ctx, v); errors.Is(err, dberrors.ErrClosed) {
//	    // reopen
//	}
package dberrors
