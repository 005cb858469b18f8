package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	appNameVar    = "APP_NAME"
	envVar        = "ENV"
	listenAddrVar = "LISTEN_ADDR"

	// ConfigFileVar names the optional YAML config file.
	ConfigFileVar = "HOSILIM_CONFIG"
)

type EnvVars struct {
	src source
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.src.get(appNameVar, "Hosilim")
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.src.get(envVar, "DEV"))
}

func (e EnvVars) GetListenAddr() string {
	addr := e.src.get(listenAddrVar, "8090")
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf(":%s", addr)
	}
	return addr
}

// LoadDotEnv loads the given .env files into the process environment. Files that do not
// exist are skipped and variables already set are left alone.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("[LoadDotEnv] %w", err)
	}
	return nil
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
