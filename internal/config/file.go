package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the optional YAML config file.
type fileConfig struct {
	AppName    string `yaml:"app_name"`
	Env        string `yaml:"env"`
	ListenAddr string `yaml:"listen_addr"`
	Identity   struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"identity"`
	Storage struct {
		Backend       string `yaml:"backend"`
		SQLitePath    string `yaml:"sqlite_path"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       *int   `yaml:"redis_db"`
		RedisPrefix   string `yaml:"redis_prefix"`
	} `yaml:"storage"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// source holds file values keyed by the env var that overrides them.
type source map[string]string

func readFile(path string) (source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[config.Load] reading %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("[config.Load] parsing %s: %w", path, err)
	}

	src := source{
		appNameVar:          fc.AppName,
		envVar:              fc.Env,
		listenAddrVar:       fc.ListenAddr,
		"IDENTITY_BASE_URL": fc.Identity.BaseURL,
		"IDENTITY_TIMEOUT":  fc.Identity.Timeout,
		"STORAGE_BACKEND":   fc.Storage.Backend,
		"SQLITE_PATH":       fc.Storage.SQLitePath,
		"REDIS_ADDR":        fc.Storage.RedisAddr,
		"REDIS_PASSWORD":    fc.Storage.RedisPassword,
		"REDIS_PREFIX":      fc.Storage.RedisPrefix,
		"LOG_LEVEL":         fc.Logging.Level,
		"LOG_FORMAT":        fc.Logging.Format,
	}
	if fc.Storage.RedisDB != nil {
		src["REDIS_DB"] = strconv.Itoa(*fc.Storage.RedisDB)
	}
	return src, nil
}

// get resolves key with precedence env > file > defaultValue.
func (s source) get(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v := s[key]; v != "" {
		return v
	}
	return defaultValue
}

func (s source) duration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s.get(key, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func (s source) integer(key string, defaultValue int) int {
	n, err := strconv.Atoi(s.get(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}
