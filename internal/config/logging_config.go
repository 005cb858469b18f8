package config

type LoggingConfig interface {
	GetLogLevel() string
	GetLogFormat() string
}

type Logging struct {
	src source
}

var _ LoggingConfig = Logging{}

func (l Logging) GetLogLevel() string {
	return l.src.get("LOG_LEVEL", "info")
}

// GetLogFormat is "console" or "json".
func (l Logging) GetLogFormat() string {
	if l.src.get("LOG_FORMAT", "console") == "json" {
		return "json"
	}
	return "console"
}
