package logger

import (
	"log"
	"os"
)

var (
	debugLogger = log.New(os.Stdout, "DEBUG: ", log.LstdFlags|log.Lmicroseconds)
	infoLogger  = log.New(os.Stdout, "INFO: ", log.LstdFlags|log.Lmicroseconds)
	errorLogger = log.New(os.Stderr, "ERROR: ", log.LstdFlags|log.Lmicroseconds)
)

func Debug(v ...interface{}) {
	debugLogger.Println(v...)
}

func Info(format string, v ...interface{}) {
	infoLogger.Printf(format, v...)
}

func Error(format string, v ...interface{}) {
	errorLogger.Printf(format, v...)
}
