package chain

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	mu    sync.Mutex
	nonce uint64
	calls int
	err   error
}

func (s *countingSource) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.nonce, s.err
}

func TestNonceManagerIncrementsLocally(t *testing.T) {
	src := &countingSource{nonce: 7}
	m := NewNonceManager(src, common.Address{})

	var got []uint64
	for i := 0; i < 3; i++ {
		err := m.Use(context.Background(), func(n uint64) error {
			got = append(got, n)
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []uint64{7, 8, 9}, got)
	assert.Equal(t, 1, src.calls)
}

func TestNonceManagerResyncsAfterFailedSend(t *testing.T) {
	src := &countingSource{nonce: 3}
	m := NewNonceManager(src, common.Address{})

	err := m.Use(context.Background(), func(n uint64) error {
		return errors.New("boom")
	})
	require.Error(t, err)

	var got uint64
	err = m.Use(context.Background(), func(n uint64) error {
		got = n
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got)
	assert.Equal(t, 2, src.calls)
}

func TestNonceManagerSourceError(t *testing.T) {
	src := &countingSource{err: errors.New("unreachable")}
	m := NewNonceManager(src, common.Address{})

	called := false
	err := m.Use(context.Background(), func(uint64) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestNonceManagerConcurrentUseIsUnique(t *testing.T) {
	src := &countingSource{}
	m := NewNonceManager(src, common.Address{})

	const n = 100
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Use(context.Background(), func(nonce uint64) error {
				mu.Lock()
				seen[nonce] = true
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for i := uint64(0); i < n; i++ {
		assert.True(t, seen[i], "nonce %d missing", i)
	}
}

func TestNonceManagerReset(t *testing.T) {
	src := &countingSource{nonce: 1}
	m := NewNonceManager(src, common.Address{})
	require.NoError(t, m.Use(context.Background(), func(uint64) error { return nil }))

	src.nonce = 10
	m.Reset()

	var got uint64
	require.NoError(t, m.Use(context.Background(), func(n uint64) error { got = n; return nil }))
	assert.Equal(t, uint64(10), got)
}
