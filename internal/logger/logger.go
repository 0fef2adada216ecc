package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGreen  = "\033[32m"
	colorPurple = "\033[35m"
)

// Log levels
const (
	LevelError = iota
	LevelWarning
	LevelInfo
	LevelDebug
)

var (
	Info    *log.Logger
	Success *log.Logger
	Debug   *log.Logger
	Warning *log.Logger
	Error   *log.Logger

	// Control overall logging level
	LogLevel = LevelInfo

	useColors = true
	timestamp = false

	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr
)

// Initialize sets up the loggers. Info, success, debug and warning lines go
// to stdout, errors go to errorHandle. Nil handles default to stdout/stderr.
func Initialize(stdoutHandle, errorHandle io.Writer) {
	if stdoutHandle == nil {
		stdoutHandle = os.Stdout
	}
	if errorHandle == nil {
		errorHandle = os.Stderr
	}
	out, errOut = stdoutHandle, errorHandle

	flags := 0
	if timestamp {
		flags = log.Ldate | log.Ltime
	}

	Info = log.New(out, prefix(colorBlue, "INFO"), flags)
	Success = log.New(out, prefix(colorGreen, "OK"), flags)
	Debug = log.New(out, prefix(colorPurple, "DEBUG"), flags)
	Warning = log.New(out, prefix(colorYellow, "WARNING"), flags)
	Error = log.New(errOut, prefix(colorRed, "ERROR"), flags)
}

func prefix(color, label string) string {
	if useColors {
		return color + label + ": " + colorReset
	}
	return label + ": "
}

// EnableColors enables colored output
func EnableColors() {
	useColors = true
	Initialize(out, errOut)
}

// DisableColors disables colored output
func DisableColors() {
	useColors = false
	Initialize(out, errOut)
}

// ToFile sends every level to w with timestamps and without colors.
func ToFile(w io.Writer) {
	useColors = false
	timestamp = true
	Initialize(w, w)
}

// SetLevel sets the logging level
func SetLevel(level int) {
	if level >= LevelError && level <= LevelDebug {
		LogLevel = level
	}
}

func Infof(format string, v ...interface{}) {
	if LogLevel >= LevelInfo {
		Info.Output(2, fmt.Sprintf(format, v...))
	}
}

func Successf(format string, v ...interface{}) {
	if LogLevel >= LevelInfo {
		Success.Output(2, fmt.Sprintf(format, v...))
	}
}

func Debugf(format string, v ...interface{}) {
	if LogLevel >= LevelDebug {
		Debug.Output(2, fmt.Sprintf(format, v...))
	}
}

func Warningf(format string, v ...interface{}) {
	if LogLevel >= LevelWarning {
		Warning.Output(2, fmt.Sprintf(format, v...))
	}
}

func Errorf(format string, v ...interface{}) {
	if LogLevel >= LevelError {
		Error.Output(2, fmt.Sprintf(format, v...))
	}
}

// Init is called automatically to initialize the logger with defaults
func init() {
	Initialize(nil, nil)
}
