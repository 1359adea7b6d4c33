package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrConnectivity means the node could not be reached. Callers may retry.
	ErrConnectivity = errors.New("chain connectivity error")
	// ErrChainRejected means the node or contract refused the call (revert,
	// failed receipt, bad nonce, no contract code). Retrying the same input
	// will fail again.
	ErrChainRejected = errors.New("chain rejected the call")
	// ErrTimeout means the call or the wait for mining outlived its deadline.
	// A timed out submission may still be mined later.
	ErrTimeout = errors.New("chain call timed out")
	// ErrReportNotFound is returned by GetReport for an id the contract does
	// not know.
	ErrReportNotFound = errors.New("report not found")
)

// Kind names the error class of err for logs and API bodies.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrReportNotFound):
		return "not_found"
	case errors.Is(err, ErrChainRejected):
		return "chain_rejected"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrConnectivity):
		return "connectivity"
	default:
		return "internal"
	}
}

// classify wraps a raw go-ethereum error with one of the package sentinels.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnectivity) || errors.Is(err, ErrChainRejected) ||
		errors.Is(err, ErrTimeout) || errors.Is(err, ErrReportNotFound) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, bind.ErrNoCode):
		return fmt.Errorf("%w: %s: %v", ErrChainRejected, op, err)
	case isRevert(err):
		return fmt.Errorf("%w: %s: %v", ErrChainRejected, op, err)
	case isTransport(err):
		return fmt.Errorf("%w: %s: %v", ErrConnectivity, op, err)
	}

	// A JSON-RPC error object means the node answered and refused.
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%w: %s: %v", ErrChainRejected, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrConnectivity, op, err)
}

func isRevert(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert")
}

func isTransport(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var httpErr rpc.HTTPError
	return errors.As(err, &httpErr)
}
