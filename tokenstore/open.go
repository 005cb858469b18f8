package tokenstore

import (
	"io"

	"github.com/hosilim/dashboard-session/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenBackend builds the backend selected by cfg. The returned closer releases it.
func OpenBackend(cfg config.StorageConfig) (Backend, io.Closer, error) {
	switch cfg.GetStorageBackend() {
	case config.StorageMemory:
		return NewMemoryBackend(), nopCloser{}, nil
	case config.StorageRedis:
		b, err := NewRedisBackend(DialRedis(cfg.GetRedisAddr(), cfg.GetRedisPassword(), cfg.GetRedisDB()), cfg.GetRedisPrefix())
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	default:
		b, err := OpenSQLite(cfg.GetSQLitePath())
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	}
}
