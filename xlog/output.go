// Package xlog provides structured logging for every indexer service,
// built on logrus the way the teacher codebase's common package wires it up:
// a global configured logger, an intelligent stdout/stderr output splitter,
// and a field-carrying wrapper for per-service/per-run context.
package xlog

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stderr when they carry
// logrus's "level=error"/"level=fatal" marker and to stdout otherwise, so
// container log collectors can apply different handling per stream without
// parsing JSON.
type OutputSplitter struct{}

func (OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte("level=fatal")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}
