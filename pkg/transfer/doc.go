// Package transfer runs long-lived download and upload tasks with
// progress reporting, pause/resume, and cancellation.
//
// Each task gets an id and a handler. The handler is registered before
// any bytes move, progress is reported only when the total size is
// known, and the terminal event is delivered at most once no matter how
// the task ends. Downloads stream into a temporary file and rename it
// into place on success; pausing a download yields opaque continuation
// bytes that Resume turns back into a live task using an HTTP range
// request.
package transfer
