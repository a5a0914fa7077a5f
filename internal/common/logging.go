package common

import (
	"log"
	"os"
)

var (
	logger = log.New(os.Stderr, "[remusdec] ", log.LstdFlags|log.Lmicroseconds)
)

func Logf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	logger.Printf("WARN "+format, args...)
}
