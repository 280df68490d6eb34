package hashgate

import (
	"fmt"
	"strings"

	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	SQLitePath string
	Redis      RedisConfig
}

// New creates the gate named by opts.Backend. An empty backend means memory.
func New(opts Options) (Gate, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		return NewMemoryGate(), nil
	case BackendSQLite:
		if opts.SQLitePath == "" {
			return nil, apperrors.ValidationError("hashgate.sqlite_path is required for the sqlite backend")
		}
		return NewSQLiteGate(opts.SQLitePath)
	case BackendRedis:
		return NewRedisGate(opts.Redis), nil
	default:
		return nil, apperrors.ValidationError(fmt.Sprintf("unknown hash gate backend %q", opts.Backend))
	}
}
