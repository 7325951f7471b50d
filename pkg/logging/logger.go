package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type appNameHook struct {
	appName string
}

// Levels implements logrus.Hook interface.
func (h *appNameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook interface.
func (h *appNameHook) Fire(entry *logrus.Entry) error {
	entry.Message = "[" + h.appName + "] " + entry.Message
	return nil
}

// New returns a logger writing to stderr. Stdout carries the program's
// payload and must never receive diagnostics.
func New(appName string) *logrus.Logger {
	return NewWithOutput(appName, os.Stderr, os.Getenv("LOG_LEVEL"))
}

func NewWithOutput(appName string, out io.Writer, levelName string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	levelName = strings.ToLower(levelName)
	if levelName == "" {
		levelName = "info"
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		logger.Warnf("Invalid LOG_LEVEL '%s', defaulting to INFO", levelName)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if appName != "" {
		logger.AddHook(&appNameHook{appName})
	}
	return logger
}
