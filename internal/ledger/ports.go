package ledger

import (
	"context"
	"errors"

	"github.com/Hxryknight/Finanzasbot/internal/core"
)

var (
	// ErrUnavailable wraps network or auth failures against the backing store.
	ErrUnavailable = errors.New("ledger store unavailable")
	// ErrNotConfigured means the adapter is missing a usable identifier or
	// credentials; it surfaces at construction, not per call.
	ErrNotConfigured = errors.New("ledger store not configured")
)

// Ports for outbound ledger adapters.
type (
	Appender interface {
		Append(ctx context.Context, tx core.Transaction) error
	}

	// Lister returns every row currently in the store. Balance queries are
	// always a full re-read; there is no incremental aggregation.
	Lister interface {
		All(ctx context.Context) ([]core.Transaction, error)
	}
)
