package common

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger = log.New(os.Stderr, "[fltlog] ", log.LstdFlags|log.Lmicroseconds)
)

func Logf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

// UseLogFile routes log output to a rotating file in addition to stderr.
// Returns a closer for the rotating sink.
func UseLogFile(path string) io.Closer {
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    20,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, sink))
	return sink
}
