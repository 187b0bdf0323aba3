package logger

// SetupLogger configures the default logger from string settings. Unknown
// levels fall back to info.
func SetupLogger(logLevel string, logJSON, logSource bool) {
	level := LogLevel(logLevel)
	switch level {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
	default:
		level = InfoLevel
	}
	_ = Init(&Config{
		Level:      level,
		JSON:       logJSON,
		AddSource:  logSource,
		TimeFormat: "15:04:05",
	})
}
