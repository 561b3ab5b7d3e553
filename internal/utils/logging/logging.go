package logging

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Entry
)

type Fields = logrus.Fields

func SetLevel(l logrus.Level) {
	logger.Logger.SetLevel(l)
}

// SetFormat switches between "text" and "json" output
func SetFormat(f string) error {
	switch f {
	case "", "text":
		logger.Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.Logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Errorf("unknown log format %q", f)
	}

	return nil
}

func SetOutput(w io.Writer) {
	logger.Logger.SetOutput(w)
}

func init() {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
}

func WithError(e error) *logrus.Entry {
	return logger.WithError(e)
}

func Entry() *logrus.Entry {
	return logger
}

// Component tags entries with the subsystem that produced them
func Component(name string) *logrus.Entry {
	return logger.WithField("component", name)
}

func Error(args ...interface{}) {
	logger.Error(args...)
}
