package logger

import (
	"io"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	logrus "github.com/sirupsen/logrus"
)

var output io.Writer = os.Stdout

// Setup points Logrus at a rotating file (and stdout) at the given level. An
// empty file logs to stdout only.
func Setup(file, level string) error {
	var out io.Writer = os.Stdout
	if file != "" {
		// Lumberjack for file rotation
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 7,  // keep up to 7 old files
			MaxAge:     7,  // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	output = out
	logrus.SetOutput(out)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	logrus.SetLevel(lvl)
	return nil
}

// Writer returns where Setup sent the logs, for the request logger.
func Writer() io.Writer {
	return output
}
