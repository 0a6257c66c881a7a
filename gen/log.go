package gen

type LogLevel int

const (
	LogLevelDebug    LogLevel = 0
	LogLevelInfo     LogLevel = 1
	LogLevelWarning  LogLevel = 2
	LogLevelError    LogLevel = 3
	LogLevelPanic    LogLevel = 4
	LogLevelDisabled LogLevel = 5
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarning:
		return "warning"
	case LogLevelError:
		return "error"
	case LogLevelPanic:
		return "panic"
	case LogLevelDisabled:
		return "disabled"
	}
	return "unknown"
}

// ParseLogLevel maps a level name (as found in a config file) to a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	switch s {
	case "debug":
		return LogLevelDebug, nil
	case "info", "":
		return LogLevelInfo, nil
	case "warning", "warn":
		return LogLevelWarning, nil
	case "error":
		return LogLevelError, nil
	case "panic":
		return LogLevelPanic, nil
	case "disabled":
		return LogLevelDisabled, nil
	}
	return LogLevelInfo, ErrIncorrect
}

// Log is the logging interface available on nodes and processes.
type Log interface {
	Level() LogLevel
	SetLevel(level LogLevel) error

	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warning(format string, args ...any)
	Error(format string, args ...any)
	Panic(format string, args ...any)
}
