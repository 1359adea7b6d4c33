// Package chaintest provides an in-memory report contract that satisfies
// chain.Backend, for tests that need a ledger without a node.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"reportrelay/internal/chain"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const submitGas = 120000

// ErrUnreachable is what every call returns while the ledger is down.
var ErrUnreachable error = &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}

// RevertError mimics the JSON-RPC error a node returns for a reverted call.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string          { return "execution reverted: " + e.Reason }
func (e *RevertError) ErrorCode() int         { return 3 }
func (e *RevertError) ErrorData() interface{} { return e.Reason }

type stored struct {
	citizenID     *big.Int
	nameHash      [32]byte
	encryptedName string
	current       string
	crime         string
	evidence      []string
	crimeTime     *big.Int
	status        uint8
	submitter     common.Address
}

// Ledger is a single-contract chain. Transactions are mined on send unless
// mining is held. Nonces are checked strictly: a reused or skipped nonce is
// refused.
type Ledger struct {
	mu       sync.Mutex
	abi      abi.ABI
	chainID  *big.Int
	contract common.Address
	signer   types.Signer

	reports  []stored
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*types.Receipt
	held     []*types.Transaction
	block    uint64
	sent     int
	queries  int

	down         bool
	holdMining   bool
	revertOnMine bool
}

var _ chain.Backend = (*Ledger)(nil)

// NewLedger returns an empty ledger with a contract deployed at contract.
func NewLedger(chainID int64, contract common.Address) *Ledger {
	parsed, err := chain.ParsedABI()
	if err != nil {
		panic(err)
	}
	id := big.NewInt(chainID)
	return &Ledger{
		abi:      parsed,
		chainID:  id,
		contract: contract,
		signer:   types.LatestSignerForChainID(id),
		nonces:   make(map[common.Address]uint64),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

// SetDown makes every call fail with ErrUnreachable.
func (l *Ledger) SetDown(down bool) {
	l.mu.Lock()
	l.down = down
	l.mu.Unlock()
}

// HoldMining keeps sent transactions pending until Mine is called.
func (l *Ledger) HoldMining(hold bool) {
	l.mu.Lock()
	l.holdMining = hold
	l.mu.Unlock()
}

// RevertOnMine makes mined submissions fail with status 0.
func (l *Ledger) RevertOnMine(revert bool) {
	l.mu.Lock()
	l.revertOnMine = revert
	l.mu.Unlock()
}

// Mine mines every held transaction.
func (l *Ledger) Mine() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, tx := range l.held {
		from, _ := types.Sender(l.signer, tx)
		l.mine(tx, from)
	}
	l.held = nil
}

// DropHeld discards held transactions as if the node evicted them from its
// pool, rolling each sender's pending nonce back.
func (l *Ledger) DropHeld() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, tx := range l.held {
		from, _ := types.Sender(l.signer, tx)
		if tx.Nonce() < l.nonces[from] {
			l.nonces[from] = tx.Nonce()
		}
	}
	l.held = nil
}

// NonceQueries counts PendingNonceAt calls.
func (l *Ledger) NonceQueries() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queries
}

// Count is the contract's report counter.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reports)
}

// Sent is the number of transactions accepted by SendTransaction.
func (l *Ledger) Sent() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

// Seed stores r directly, as if submitted by submitter, and returns its id.
func (l *Ledger) Seed(r chain.Report, submitter common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports = append(l.reports, stored{
		citizenID:     new(big.Int).SetUint64(r.CitizenID),
		nameHash:      r.NameHash,
		encryptedName: r.EncryptedNameIPFS,
		current:       r.CurrentLocation,
		crime:         r.CrimeLocation,
		evidence:      r.EvidenceURIs,
		crimeTime:     big.NewInt(r.CrimeTime),
		submitter:     submitter,
	})
	return uint64(len(l.reports))
}

// SetRaw overwrites the numeric fields of report id with values a client
// other than the relay could have written.
func (l *Ledger) SetRaw(id uint64, citizenID, crimeTime *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports[id-1].citizenID = citizenID
	l.reports[id-1].crimeTime = crimeTime
}

// SetStatus changes the status of report id, like contract-side review would.
func (l *Ledger) SetStatus(id uint64, status uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports[id-1].status = status
}

func (l *Ledger) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return l.code(ctx, account)
}

func (l *Ledger) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return l.code(ctx, account)
}

func (l *Ledger) code(ctx context.Context, account common.Address) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reachable(ctx); err != nil {
		return nil, err
	}
	if account != l.contract {
		return nil, nil
	}
	return []byte{0x60, 0x80, 0x60, 0x40, 0x52}, nil
}

func (l *Ledger) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reachable(ctx); err != nil {
		return nil, err
	}
	if call.To == nil || *call.To != l.contract {
		return nil, nil
	}

	method, args, err := l.decode(call.Data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case chain.MethodReportCount:
		return method.Outputs.Pack(big.NewInt(int64(len(l.reports))))
	case chain.MethodGetReport:
		id := args[0].(*big.Int)
		if id.Sign() <= 0 || id.Cmp(big.NewInt(int64(len(l.reports)))) > 0 {
			return nil, &RevertError{Reason: "report does not exist"}
		}
		r := l.reports[id.Int64()-1]
		return method.Outputs.Pack(r.citizenID, r.nameHash, r.encryptedName, r.current, r.crime,
			r.evidence, r.crimeTime, r.status, r.submitter)
	case chain.MethodSubmitReport:
		return nil, validate(args)
	}
	return nil, &RevertError{Reason: "unknown method"}
}

func (l *Ledger) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reachable(ctx); err != nil {
		return nil, err
	}
	// No base fee: bind falls back to legacy transactions.
	return &types.Header{Number: new(big.Int).SetUint64(l.block)}, nil
}

func (l *Ledger) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reachable(ctx); err != nil {
		return 0, err
	}
	l.queries++
	return l.nonces[account], nil
}

func (l *Ledger) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reachable(ctx); err != nil {
		return nil, err
	}
	return big.NewInt(1_000_000_000), nil
}

func (l *Ledger) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return l.SuggestGasPrice(ctx)
}

func (l *Ledger) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reachable(ctx); err != nil {
		return 0, err
	}
	method, args, err := l.decode(call.Data)
	if err != nil {
		return 0, err
	}
	if method.Name == chain.MethodSubmitReport {
		if err := validate(args); err != nil {
			return 0, err
		}
	}
	return submitGas, nil
}

func (l *Ledger) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reachable(ctx); err != nil {
		return err
	}
	from, err := types.Sender(l.signer, tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	expected := l.nonces[from]
	if tx.Nonce() < expected {
		return fmt.Errorf("nonce too low: address %s, tx: %d state: %d", from.Hex(), tx.Nonce(), expected)
	}
	if tx.Nonce() > expected {
		return fmt.Errorf("nonce too high: address %s, tx: %d state: %d", from.Hex(), tx.Nonce(), expected)
	}
	l.nonces[from] = expected + 1
	l.sent++

	if l.holdMining {
		l.held = append(l.held, tx)
		return nil
	}
	l.mine(tx, from)
	return nil
}

func (l *Ledger) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reachable(ctx); err != nil {
		return nil, err
	}
	receipt, ok := l.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (l *Ledger) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (l *Ledger) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("chaintest: log subscriptions are not supported")
}

func (l *Ledger) ChainID(ctx context.Context) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reachable(ctx); err != nil {
		return nil, err
	}
	return new(big.Int).Set(l.chainID), nil
}

func (l *Ledger) reachable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.down {
		return ErrUnreachable
	}
	return nil
}

func (l *Ledger) decode(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, &RevertError{Reason: "missing selector"}
	}
	method, err := l.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, &RevertError{Reason: "unknown selector"}
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, &RevertError{Reason: "malformed arguments"}
	}
	return method, args, nil
}

// mine applies tx to contract state. Callers hold l.mu.
func (l *Ledger) mine(tx *types.Transaction, from common.Address) {
	l.block++
	receipt := &types.Receipt{
		Type:        tx.Type(),
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		GasUsed:     submitGas,
		BlockNumber: new(big.Int).SetUint64(l.block),
		BlockHash:   crypto.Keccak256Hash(new(big.Int).SetUint64(l.block).Bytes()),
	}

	method, args, err := l.decode(tx.Data())
	if err != nil || method.Name != chain.MethodSubmitReport || validate(args) != nil || l.revertOnMine {
		receipt.Status = types.ReceiptStatusFailed
		l.receipts[tx.Hash()] = receipt
		return
	}

	l.reports = append(l.reports, stored{
		citizenID:     args[0].(*big.Int),
		nameHash:      args[1].([32]byte),
		encryptedName: args[2].(string),
		current:       args[3].(string),
		crime:         args[4].(string),
		evidence:      args[5].([]string),
		crimeTime:     args[6].(*big.Int),
		submitter:     from,
	})
	l.receipts[tx.Hash()] = receipt
}

// validate applies the contract's own require() checks.
func validate(args []interface{}) error {
	if args[0].(*big.Int).Sign() == 0 {
		return &RevertError{Reason: "citizenId required"}
	}
	if args[1].([32]byte) == ([32]byte{}) {
		return &RevertError{Reason: "nameHash required"}
	}
	if args[4].(string) == "" {
		return &RevertError{Reason: "crimeLocation required"}
	}
	if len(args[5].([]string)) == 0 {
		return &RevertError{Reason: "evidence required"}
	}
	return nil
}
