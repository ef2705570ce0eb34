// Package common provides centralized logging infrastructure: a global
// logrus.Logger whose output is split between stdout and stderr by level,
// so error-level messages reach a stream container log collectors treat
// differently from routine output.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stderr when they carry
// logrus's "level=error" marker, and to stdout otherwise.
type OutputSplitter struct{}

func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the package-wide logrus instance; components should prefer a
// *ContextLogger built from it (see logger.go) over calling it directly.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
