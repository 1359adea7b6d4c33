package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const (
	DefaultCallTimeout   = 10 * time.Second
	DefaultSubmitTimeout = 2 * time.Minute
)

// Backend is everything the client needs from a node. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Options configures a Client.
type Options struct {
	Contract common.Address
	Key      *ecdsa.PrivateKey
	// ChainID of 0 asks the node during New.
	ChainID       uint64
	CallTimeout   time.Duration
	SubmitTimeout time.Duration
}

// Client is the single point of contact with the report contract. It is safe
// for concurrent use.
type Client struct {
	backend  Backend
	contract *bind.BoundContract
	address  common.Address
	auth     *bind.TransactOpts
	nonces   *NonceManager
	chainID  *big.Int
	opts     Options
	logger   *zap.Logger
	closer   func()
}

// Dial connects to rpcURL and builds a Client on top of it.
func Dial(ctx context.Context, rpcURL string, opts Options, logger *zap.Logger) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, classify("dial", err)
	}
	c, err := New(ctx, ec, opts, logger)
	if err != nil {
		ec.Close()
		return nil, err
	}
	c.closer = ec.Close
	return c, nil
}

// New builds a Client over an existing backend.
func New(ctx context.Context, backend Backend, opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Key == nil {
		return nil, errors.New("chain: signing key is required")
	}
	if opts.Contract == (common.Address{}) {
		return nil, errors.New("chain: contract address is required")
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = DefaultSubmitTimeout
	}

	parsed, err := ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("chain: parse abi: %w", err)
	}

	var chainID *big.Int
	if opts.ChainID != 0 {
		chainID = new(big.Int).SetUint64(opts.ChainID)
	} else {
		cctx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
		chainID, err = backend.ChainID(cctx)
		cancel()
		if err != nil {
			return nil, classify("chainId", err)
		}
	}

	auth, err := bind.NewKeyedTransactorWithChainID(opts.Key, chainID)
	if err != nil {
		return nil, fmt.Errorf("chain: build transactor: %w", err)
	}

	c := &Client{
		backend:  backend,
		contract: bind.NewBoundContract(opts.Contract, parsed, backend, backend, backend),
		address:  opts.Contract,
		auth:     auth,
		nonces:   NewNonceManager(backend, auth.From),
		chainID:  chainID,
		opts:     opts,
		logger:   logger.With(zap.String("contract", opts.Contract.Hex())),
	}
	c.logger.Info("chain client ready",
		zap.String("signer", auth.From.Hex()),
		zap.String("chain_id", chainID.String()),
	)
	return c, nil
}

// Close releases the RPC connection if the client dialed it.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// ContractAddress is the configured contract, independent of chain state.
func (c *Client) ContractAddress() common.Address {
	return c.address
}

// Signer is the account that pays for submissions.
func (c *Client) Signer() common.Address {
	return c.auth.From
}

// ChainID asks the node for its network identity.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, classify("chainId", err)
	}
	return id, nil
}

// ReportCount returns the number of reports stored on-chain.
func (c *Client) ReportCount(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, MethodReportCount); err != nil {
		return 0, classify(MethodReportCount, err)
	}
	count := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if !count.IsUint64() {
		return 0, fmt.Errorf("%w: %s: counter %s overflows uint64", ErrChainRejected, MethodReportCount, count)
	}
	return count.Uint64(), nil
}

// GetReport reads one report by its on-chain id.
func (c *Client) GetReport(ctx context.Context, id uint64) (*ReportRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, MethodGetReport, new(big.Int).SetUint64(id))
	if err != nil {
		err = classify(MethodGetReport, err)
		if errors.Is(err, ErrChainRejected) {
			return nil, fmt.Errorf("%w: id %d: %v", ErrReportNotFound, id, err)
		}
		return nil, err
	}

	citizenID := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	nameHash := *abi.ConvertType(out[1], new([32]byte)).(*[32]byte)
	encryptedName := *abi.ConvertType(out[2], new(string)).(*string)
	currentLocation := *abi.ConvertType(out[3], new(string)).(*string)
	crimeLocation := *abi.ConvertType(out[4], new(string)).(*string)
	evidence := *abi.ConvertType(out[5], new([]string)).(*[]string)
	crimeTime := *abi.ConvertType(out[6], new(*big.Int)).(**big.Int)
	status := *abi.ConvertType(out[7], new(uint8)).(*uint8)
	submitter := *abi.ConvertType(out[8], new(common.Address)).(*common.Address)

	// Unset mapping slots come back zeroed instead of reverting.
	if submitter == (common.Address{}) {
		return nil, fmt.Errorf("%w: id %d", ErrReportNotFound, id)
	}
	if !citizenID.IsUint64() {
		return nil, fmt.Errorf("%w: %s: id %d: citizenId %s overflows uint64", ErrChainRejected, MethodGetReport, id, citizenID)
	}
	if !crimeTime.IsInt64() {
		return nil, fmt.Errorf("%w: %s: id %d: crimeTime %s overflows int64", ErrChainRejected, MethodGetReport, id, crimeTime)
	}

	return &ReportRecord{
		ID: id,
		Report: Report{
			CitizenID:         citizenID.Uint64(),
			NameHash:          common.Hash(nameHash),
			EncryptedNameIPFS: encryptedName,
			CurrentLocation:   currentLocation,
			CrimeLocation:     crimeLocation,
			EvidenceURIs:      evidence,
			CrimeTime:         crimeTime.Int64(),
		},
		Status:    ReportStatus(status),
		Submitter: submitter,
	}, nil
}

// SubmitReport signs and sends a submitReport transaction and waits for it to
// be mined. Every successful call spends gas from the signer. There is no
// retry; a caller that resubmits after a timeout may create a duplicate.
func (c *Client) SubmitReport(ctx context.Context, r Report) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.SubmitTimeout)
	defer cancel()

	var tx *types.Transaction
	err := c.nonces.Use(ctx, func(nonce uint64) error {
		opts := *c.auth
		opts.Context = ctx
		opts.Nonce = new(big.Int).SetUint64(nonce)

		var err error
		tx, err = c.contract.Transact(&opts, MethodSubmitReport, r.args()...)
		return err
	})
	if err != nil {
		return nil, classify(MethodSubmitReport, err)
	}

	c.logger.Info("report transaction sent",
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()),
		zap.Uint64("citizen_id", r.CitizenID),
	)

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		// 交易可能被节点丢弃，下次提交前重新同步 nonce
		c.nonces.Reset()
		return nil, classify("wait "+tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		c.nonces.Reset()
		return nil, fmt.Errorf("%w: %s: transaction %s reverted in block %s",
			ErrChainRejected, MethodSubmitReport, tx.Hash().Hex(), receipt.BlockNumber)
	}

	return &Receipt{
		TxHash:      tx.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// Address derives the account address of key.
func Address(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
