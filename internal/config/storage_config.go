package config

import (
	"os"
	"path/filepath"
)

type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageSQLite StorageBackend = "sqlite"
	StorageRedis  StorageBackend = "redis"
)

type StorageConfig interface {
	GetStorageBackend() StorageBackend
	GetSQLitePath() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type Storage struct {
	src source
}

var _ StorageConfig = Storage{}

func (s Storage) GetStorageBackend() StorageBackend {
	switch b := StorageBackend(s.src.get("STORAGE_BACKEND", string(StorageSQLite))); b {
	case StorageMemory, StorageSQLite, StorageRedis:
		return b
	default:
		return StorageSQLite
	}
}

func (s Storage) GetSQLitePath() string {
	return s.src.get("SQLITE_PATH", defaultSQLitePath())
}

func (s Storage) GetRedisAddr() string {
	return s.src.get("REDIS_ADDR", "localhost:6379")
}

func (s Storage) GetRedisPassword() string {
	return s.src.get("REDIS_PASSWORD", "")
}

func (s Storage) GetRedisDB() int {
	return s.src.integer("REDIS_DB", 0)
}

func (s Storage) GetRedisPrefix() string {
	return s.src.get("REDIS_PREFIX", "hosilim:session:")
}

func defaultSQLitePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./session.db"
	}
	return filepath.Join(dir, "hosilim", "session.db")
}
