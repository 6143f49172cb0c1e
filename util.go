package opq

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's runtime id by parsing
// its own stack trace header. It exists purely to back
// assertOnEventQueue's internal invariant checking; it
// is not used anywhere on a correctness-critical path, only in debug
// assertions, which is the traditional caveat attached to this
// well-worn (if inelegant) trick.
func goroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, _ := strconv.ParseInt(string(buf), 10, 64)
	return id
}
