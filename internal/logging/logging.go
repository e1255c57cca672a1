// Package logging wires the node's structured, per-subsystem logging.
// Grounded directly on the teacher's logger package (one io.Writer
// fanning out to stdout + a file rotator, one named logger per
// subsystem, dynamically adjustable level per subsystem) but swaps the
// bespoke logs.Backend for github.com/sirupsen/logrus as the leveled
// backend (SPEC_FULL §A), keeping github.com/jrick/logrotate/rotator for
// on-disk rotation exactly as logger.InitLogRotators does.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"github.com/sirupsen/logrus"
)

// Subsystem tags, one per unit named in spec §2's thread table plus the
// API gateway and store layer. Mirrors the teacher's SubsystemTags enum
// shape, renamed to this system's units.
const (
	SubsystemIndexer   = "INDX"
	SubsystemConsensus = "CONS"
	SubsystemMempool   = "MEMP"
	SubsystemAPI       = "APIS"
	SubsystemEpoch     = "EPCH"
	SubsystemFabric    = "FBRC"
	SubsystemChainRPC  = "CRPC"
	SubsystemStore     = "STOR"
	SubsystemVM        = "VM  "
)

var (
	logRotator *rotator.Rotator
	root       = logrus.New()
)

// logWriter fans every write out to stdout and the rotator, mirroring
// logger.logWriter's dual-destination behavior.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p) //nolint:errcheck // best-effort console mirror, matching the teacher's logWriter
	if logRotator != nil {
		_, _ = logRotator.Write(p)
	}
	return len(p), nil
}

// Init sets up the rotating file writer at logFile and points logrus's
// output at the dual stdout+rotator writer. Must be called before any
// subsystem logger produced by For is used for file output to take
// effect; loggers work (stdout-only) even if Init is never called.
func Init(logFile string, level logrus.Level) error {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("creating log rotator: %w", err)
	}
	logRotator = r

	root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	root.SetOutput(logWriter{})
	root.SetLevel(level)
	return nil
}

// For returns a structured logger scoped to subsystem, the
// log.WithField("subsystem", "indexer") replacement for
// logger.BackendLog.Logger("INDX") (SPEC_FULL §A).
func For(subsystem string) *logrus.Entry {
	return root.WithField("subsystem", subsystem)
}

// SetLevel adjusts every subsystem logger's level at once, the
// replacement for logger.SetLogLevels.
func SetLevel(level logrus.Level) {
	root.SetLevel(level)
}

// Close flushes and closes the underlying rotator, if initialized.
func Close() {
	if logRotator != nil {
		logRotator.Close()
	}
}
