package config

import "time"

type IdentityConfig interface {
	GetIdentityBaseURL() string
	GetIdentityTimeout() time.Duration
}

type Identity struct {
	src source
}

var _ IdentityConfig = Identity{}

func (i Identity) GetIdentityBaseURL() string {
	return i.src.get("IDENTITY_BASE_URL", "http://localhost:8080/api")
}

// GetIdentityTimeout bounds each identity service call so boot cannot hang.
func (i Identity) GetIdentityTimeout() time.Duration {
	return i.src.duration("IDENTITY_TIMEOUT", 10*time.Second)
}
