package config

type Config interface {
	EnvConfig
	IdentityConfig
	StorageConfig
	LoggingConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetListenAddr() string
}

type mainConfig struct {
	EnvVars
	Identity
	Storage
	Logging
}

// New returns a Config backed by environment variables only.
func New() Config {
	return newFromSource(nil)
}

// Load returns a Config backed by environment variables with the YAML file at path
// as the fallback layer. An empty path behaves like New.
func Load(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	src, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return newFromSource(src), nil
}

func newFromSource(src source) Config {
	return mainConfig{
		EnvVars:  EnvVars{src: src},
		Identity: Identity{src: src},
		Storage:  Storage{src: src},
		Logging:  Logging{src: src},
	}
}
