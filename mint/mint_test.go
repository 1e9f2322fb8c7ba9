package mint

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weavemint.dev/weavemint/fault"
	"weavemint.dev/weavemint/metadata"
)

const owner = "0x709d29dc073F42feF70B6aa751A8D186425b2750"

func TestCalldata(t *testing.T) {
	md, err := metadata.Encode(metadata.New("Profile Picture", "https://arweave.net/x", metadata.TraitRecord{{Name: "Style", Value: "Cool"}}))
	require.NoError(t, err)

	data, err := Calldata(owner, md)
	require.NoError(t, err)

	selector := crypto.Keccak256([]byte("mintNft(address,bytes)"))[:4]
	assert.Equal(t, selector, data[:4])

	args, err := parsedABI.Methods[methodMint].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, common.HexToAddress(owner), args[0])
	assert.Equal(t, md, args[1])

	decoded, err := metadata.Decode(args[1].([]byte))
	require.NoError(t, err)
	assert.Equal(t, "Profile Picture", decoded.Name)
}

func TestCalldata_BadOwner(t *testing.T) {
	_, err := Calldata("not-an-address", []byte{1})
	assert.True(t, fault.IsKind(err, fault.KindInvalid))
}

// chainOnly answers ChainID and nothing else.
type chainOnly struct {
	Backend
	id  *big.Int
	err error
}

func (c chainOnly) ChainID(context.Context) (*big.Int, error) { return c.id, c.err }

func testKey(t *testing.T) string {
	t.Helper()
	k, err := crypto.GenerateKey()
	require.NoError(t, err)
	return "0x" + common.Bytes2Hex(crypto.FromECDSA(k))
}

func TestNew_ChainCheck(t *testing.T) {
	key := testKey(t)

	m, err := New(context.Background(), chainOnly{id: big.NewInt(DefaultChainID)}, Options{PrivateKey: key})
	require.NoError(t, err)
	assert.True(t, common.IsHexAddress(m.From()))

	_, err = New(context.Background(), chainOnly{id: big.NewInt(1)}, Options{PrivateKey: key})
	assert.True(t, fault.IsKind(err, fault.KindConfig))

	_, err = New(context.Background(), chainOnly{err: errors.New("rpc down")}, Options{PrivateKey: key})
	assert.True(t, fault.IsKind(err, fault.KindMint))
}

func TestNew_BadOptions(t *testing.T) {
	backend := chainOnly{id: big.NewInt(DefaultChainID)}

	_, err := New(context.Background(), backend, Options{PrivateKey: "zz"})
	assert.True(t, fault.IsKind(err, fault.KindConfig))

	_, err = New(context.Background(), backend, Options{PrivateKey: testKey(t), Contract: "0x123"})
	assert.True(t, fault.IsKind(err, fault.KindConfig))
}

func TestMint_RejectsBadOwnerBeforeSending(t *testing.T) {
	m, err := New(context.Background(), chainOnly{id: big.NewInt(DefaultChainID)}, Options{PrivateKey: testKey(t)})
	require.NoError(t, err)
	_, err = m.Mint(context.Background(), "bob", []byte{1})
	assert.True(t, fault.IsKind(err, fault.KindInvalid))
}

var (
	// stopCode accepts any call; revertCode rejects any call.
	stopCode   = []byte{0x00}
	revertCode = []byte{0x60, 0x00, 0x60, 0x00, 0xfd}
)

// simChain starts an in-process chain with a funded sender and a contract at
// contract running code.
func simChain(t *testing.T, contract common.Address, code []byte) (*simulated.Backend, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)
	sim := simulated.NewBackend(types.GenesisAlloc{
		from:     {Balance: big.NewInt(1_000_000_000_000_000_000)},
		contract: {Code: code},
	})
	t.Cleanup(func() { _ = sim.Close() })
	return sim, "0x" + common.Bytes2Hex(crypto.FromECDSA(key))
}

func simMinter(t *testing.T, sim *simulated.Backend, contract common.Address, key string) *EthMinter {
	t.Helper()
	ctx := context.Background()
	id, err := sim.Client().ChainID(ctx)
	require.NoError(t, err)
	m, err := New(ctx, sim.Client(), Options{Contract: contract.Hex(), ChainID: id.Int64(), PrivateKey: key})
	require.NoError(t, err)
	return m
}

func TestMint_MinedOnSimulatedChain(t *testing.T) {
	contract := common.HexToAddress(DefaultContract)
	sim, key := simChain(t, contract, stopCode)
	m := simMinter(t, sim, contract, key)

	md, err := metadata.Encode(metadata.New("Profile Picture", "https://arweave.net/x", nil))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	type result struct {
		rcpt *Receipt
		err  error
	}
	done := make(chan result, 1)
	go func() {
		rcpt, err := m.Mint(ctx, owner, md)
		done <- result{rcpt, err}
	}()

	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	var res result
wait:
	for {
		select {
		case res = <-done:
			break wait
		case <-tick.C:
			sim.Commit()
		}
	}
	require.NoError(t, res.err)
	assert.NotEmpty(t, res.rcpt.TxHash)
	assert.GreaterOrEqual(t, res.rcpt.BlockNumber, uint64(1))
	assert.Greater(t, res.rcpt.GasUsed, uint64(21000))

	tx, _, err := sim.Client().TransactionByHash(context.Background(), common.HexToHash(res.rcpt.TxHash))
	require.NoError(t, err)
	want, err := Calldata(owner, md)
	require.NoError(t, err)
	assert.Equal(t, want, tx.Data())
	assert.Equal(t, contract, *tx.To())
}

func TestMint_RevertingContract(t *testing.T) {
	contract := common.HexToAddress(DefaultContract)
	sim, key := simChain(t, contract, revertCode)
	m := simMinter(t, sim, contract, key)

	_, err := m.Mint(context.Background(), owner, []byte{1})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindMint))
}
