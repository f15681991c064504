package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a new configured logger. When file is set, output is
// also written to a rotating log file.
func NewLogger(level string, file string) *logrus.Logger {
	logger := logrus.New()

	var out io.Writer = os.Stdout
	if file != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Parse log level
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	return logger
}
