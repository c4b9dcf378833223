// Package xlog wraps logrus with the rotation and field conventions used
// across the signature-localization pipeline.
package xlog

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/an0x03e8/avred/config"
)

type Logger struct {
	*logrus.Logger
}

func New(cfg *config.Config) (*Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   true,
	})

	if cfg.LogFilePath != "" {
		logDir := filepath.Dir(cfg.LogFilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, err
		}

		fileLogger := &lumberjack.Logger{
			Filename:   cfg.LogFilePath,
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}

		logger.SetOutput(io.MultiWriter(os.Stdout, fileLogger))
	}

	return &Logger{Logger: logger}, nil
}

func (l *Logger) WithRun(runID string) *logrus.Entry {
	return l.WithField("run_id", runID)
}

func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.WithField("component", component)
}
