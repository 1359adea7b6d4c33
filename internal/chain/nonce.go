package chain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceSource reports the next nonce the node expects from an account,
// counting pending transactions.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceManager hands out nonces for a single signing account. The lock is held
// while the caller signs and sends, so two in-flight submissions never share
// a nonce and nonces are sent in order.
type NonceManager struct {
	mu      sync.Mutex
	source  NonceSource
	account common.Address
	next    uint64
	synced  bool
}

func NewNonceManager(source NonceSource, account common.Address) *NonceManager {
	return &NonceManager{source: source, account: account}
}

// Use calls send with the next nonce. The nonce is consumed only if send
// succeeds; after a failure the manager resyncs from the node on the next
// call, since a rejected send may or may not have reached the mempool.
func (m *NonceManager) Use(ctx context.Context, send func(nonce uint64) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.synced {
		n, err := m.source.PendingNonceAt(ctx, m.account)
		if err != nil {
			return err
		}
		m.next = n
		m.synced = true
	}

	if err := send(m.next); err != nil {
		m.synced = false
		return err
	}
	m.next++
	return nil
}

// Reset forces the next Use to ask the node.
func (m *NonceManager) Reset() {
	m.mu.Lock()
	m.synced = false
	m.mu.Unlock()
}
