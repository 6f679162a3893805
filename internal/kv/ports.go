// Package kv defines the key-value persistence collaborator the record
// store is built on.
package kv

import (
	"context"
	"errors"
)

// Keys used by the record store.
const (
	KeyPayables = "contas_pagar"
	KeyInflows  = "entradas_financeiras"
	KeyConfig   = "configuracoes"
)

// Keys lists every key the application owns.
var Keys = []string{KeyPayables, KeyInflows, KeyConfig}

var ErrQuotaExceeded = errors.New("storage quota exceeded")

type (
	Reader interface {
		// Get returns the stored value and whether the key exists.
		Get(ctx context.Context, key string) (value string, ok bool, err error)
	}

	Writer interface {
		Set(ctx context.Context, key, value string) error
		// Remove deletes key; removing a missing key is not an error.
		Remove(ctx context.Context, key string) error
	}

	Store interface {
		Reader
		Writer
	}
)
