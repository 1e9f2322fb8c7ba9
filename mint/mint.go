// Package mint submits encoded token metadata to the minting contract.
package mint

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"weavemint.dev/weavemint/fault"
	"weavemint.dev/weavemint/logging"
)

const (
	DefaultRPCURL   = "https://testnet-rpc.wvm.dev"
	DefaultChainID  = 9496
	DefaultContract = "0x61a5d7B751C0e249ED4c418789Bd230c00Be2e5a"
	DefaultKeyEnv   = "PRIVATE_KEY"

	methodMint = "mintNft"
)

const contractABI = `[{"type":"function","name":"mintNft","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address","internalType":"address"},{"name":"metadata","type":"bytes","internalType":"bytes"}],"outputs":[]}]`

var parsedABI = mustABI()

func mustABI() abi.ABI {
	a, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		panic("mint: parsing contract ABI: " + err.Error())
	}
	return a
}

// Receipt summarizes a mined minting transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
}

// Minter mints one token for owner carrying metadata.
type Minter interface {
	Mint(ctx context.Context, owner string, metadata []byte) (*Receipt, error)
}

// Calldata returns the transaction input for mintNft(owner, metadata).
func Calldata(owner string, metadata []byte) ([]byte, error) {
	addr, err := parseOwner(owner)
	if err != nil {
		return nil, err
	}
	return parsedABI.Pack(methodMint, addr, metadata)
}

func parseOwner(owner string) (common.Address, error) {
	if !common.IsHexAddress(owner) {
		return common.Address{}, fault.Newf(fault.KindInvalid, "mint.owner", "%q is not an address", owner)
	}
	return common.HexToAddress(owner), nil
}

// Backend is the chain access an EthMinter needs. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Options configures an EthMinter.
type Options struct {
	RPCURL   string
	Contract string
	ChainID  int64
	// PrivateKey is hex, with or without a 0x prefix.
	PrivateKey string
	Logger     *slog.Logger
}

// EthMinter sends mintNft transactions from one key and waits for them to be
// mined.
type EthMinter struct {
	backend  Backend
	contract *bind.BoundContract
	address  common.Address
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	logger   *slog.Logger
}

var _ Minter = (*EthMinter)(nil)

// Dial connects to opts.RPCURL and returns a minter bound to opts.Contract.
func Dial(ctx context.Context, opts Options) (*EthMinter, func(), error) {
	url := opts.RPCURL
	if url == "" {
		url = DefaultRPCURL
	}
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, nil, fault.Wrap(fault.KindMint, "mint.dial", "connecting to "+url, err)
	}
	m, err := New(ctx, client, opts)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return m, client.Close, nil
}

// New binds a minter to an existing backend. It fails when the backend is on
// a different chain than opts.ChainID.
func New(ctx context.Context, backend Backend, opts Options) (*EthMinter, error) {
	const op = "mint.new"
	contract := opts.Contract
	if contract == "" {
		contract = DefaultContract
	}
	if !common.IsHexAddress(contract) {
		return nil, fault.Newf(fault.KindConfig, op, "contract %q is not an address", contract)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(opts.PrivateKey, "0x"))
	if err != nil {
		return nil, fault.Wrap(fault.KindConfig, op, "parsing private key", err)
	}

	want := big.NewInt(opts.ChainID)
	if opts.ChainID == 0 {
		want = big.NewInt(DefaultChainID)
	}
	got, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.KindMint, op, "reading chain id", err)
	}
	if got.Cmp(want) != 0 {
		return nil, fault.Newf(fault.KindConfig, op, "backend is on chain %s, want %s", got, want)
	}

	addr := common.HexToAddress(contract)
	return &EthMinter{
		backend:  backend,
		contract: bind.NewBoundContract(addr, parsedABI, backend, backend, backend),
		address:  addr,
		key:      key,
		chainID:  want,
		logger:   logging.OrDiscard(opts.Logger),
	}, nil
}

// From returns the sending account.
func (m *EthMinter) From() string {
	return crypto.PubkeyToAddress(m.key.PublicKey).Hex()
}

func (m *EthMinter) Mint(ctx context.Context, owner string, metadata []byte) (*Receipt, error) {
	const op = "mint.mint"
	to, err := parseOwner(owner)
	if err != nil {
		return nil, err
	}
	auth, err := bind.NewKeyedTransactorWithChainID(m.key, m.chainID)
	if err != nil {
		return nil, fault.Wrap(fault.KindMint, op, "building transactor", err)
	}
	auth.Context = ctx

	tx, err := m.contract.Transact(auth, methodMint, to, metadata)
	if err != nil {
		return nil, fault.Wrap(fault.KindMint, op, "sending transaction", err)
	}
	m.logger.Info("mint transaction sent", "tx", tx.Hash().Hex(), "contract", m.address.Hex(), "owner", to.Hex())

	rcpt, err := bind.WaitMined(ctx, m.backend, tx)
	if err != nil {
		return nil, fault.Wrap(fault.KindMint, op, "waiting for receipt", err)
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return nil, fault.New(fault.KindMint, op, fmt.Sprintf("transaction %s reverted", tx.Hash().Hex()))
	}
	m.logger.Info("mint transaction mined", "tx", tx.Hash().Hex(), "block", rcpt.BlockNumber, "gas_used", rcpt.GasUsed)
	return &Receipt{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: rcpt.BlockNumber.Uint64(),
		GasUsed:     rcpt.GasUsed,
	}, nil
}
