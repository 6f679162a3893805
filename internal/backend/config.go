package backend

import (
	"errors"
	"fmt"
	"strings"

	"financeiro/internal/config"
)

// Types lists every backend CreateBackend can open.
var Types = []BackendType{SQLiteBackend, MemoryBackend}

var ErrUnknownType = errors.New("unknown data backend")

// TypeNames returns Types as plain strings for help text and errors.
func TypeNames() []string {
	names := make([]string, len(Types))
	for i, t := range Types {
		names[i] = t.String()
	}
	return names
}

// Shared reports whether another process can open the same records, which
// is what makes change notifications and the worker's exports meaningful.
func (bt BackendType) Shared() bool {
	return bt == SQLiteBackend
}

// FromAppConfig picks the settings the selected backend reads. Broker
// settings travel only with a shared backend; a memory store has no other
// reader to notify.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("backend: no application config")
	}

	kind := BackendType(strings.ToLower(strings.TrimSpace(cfg.DataBackend)))
	switch kind {
	case SQLiteBackend:
		return Config{
			Type:         kind,
			SQLiteDBPath: cfg.SQLiteDBPath,
			AMQPURL:      cfg.AMQPURL,
			AMQPExchange: cfg.AMQPExchange,
			AMQPQueue:    cfg.AMQPQueue,
		}, nil
	case MemoryBackend:
		return Config{Type: kind, SeedDir: cfg.SeedDir}, nil
	}
	return Config{}, fmt.Errorf("%w %q: want one of %s", ErrUnknownType, cfg.DataBackend, strings.Join(TypeNames(), ", "))
}

// Validate reports settings CreateBackend cannot open. Messages name the
// environment variable to fix.
func (c Config) Validate() error {
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("sqlite backend needs SQLITE_DB_PATH")
		}
		if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
			return errors.New("AMQP_URL is set but AMQP_EXCHANGE or AMQP_QUEUE is empty")
		}
	case MemoryBackend:
		if c.AMQPURL != "" {
			return errors.New("memory backend cannot publish changes: unset AMQP_URL or use sqlite")
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownType, c.Type)
	}
	return nil
}
