package gputest

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/spaghettifunk/prism/engine/core"
)

// LogCapture collects process log output for the duration of a test.
type LogCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *LogCapture) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func CaptureLog(t testing.TB) *LogCapture {
	t.Helper()
	l := &LogCapture{}
	core.SetLogOutput(l)
	t.Cleanup(func() { core.SetLogOutput(os.Stderr) })
	return l
}

// Warnings returns the warning lines logged so far.
func (l *LogCapture) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, line := range strings.Split(l.buf.String(), "\n") {
		if strings.Contains(line, "WARN") {
			out = append(out, line)
		}
	}
	return out
}

func (l *LogCapture) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}
