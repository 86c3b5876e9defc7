package digraph

import (
	"bytes"
	"runtime"
	"strconv"
)

// goid extracts the current goroutine ID from the stack header. It is only a
// structured log field for tracing concurrent resolutions; no engine state is
// ever keyed by it.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Header shape: "goroutine 123 [running]:".
	s := buf[:n]
	start := bytes.IndexByte(s, ' ') + 1
	end := start + bytes.IndexByte(s[start:], ' ')
	if start <= 0 || end <= start {
		return 0
	}
	id, _ := strconv.ParseInt(string(s[start:end]), 10, 64)
	return id
}
