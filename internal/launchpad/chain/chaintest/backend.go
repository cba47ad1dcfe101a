// Package chaintest 内存版 chain.Backend, 供各模块测试使用
package chaintest

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrNotFound = errors.New("not found")

// CallHandler 收到解包后的参数, 返回待打包的输出
type CallHandler func(args []interface{}) ([]interface{}, error)

type callKey struct {
	contract common.Address
	selector [4]byte
}

type callEntry struct {
	method  abi.Method
	handler CallHandler
}

type Backend struct {
	mu       sync.Mutex
	ChainID  *big.Int
	head     uint64
	times    map[uint64]uint64 // block -> unix 秒
	txs      map[common.Hash]*types.Transaction
	receipts map[common.Hash]*types.Receipt
	logs     []types.Log
	calls    map[callKey]callEntry
	balances map[common.Address]*big.Int
	failures map[string]error
	counts   map[string]int
}

func NewBackend(chainID int64, head uint64) *Backend {
	return &Backend{
		ChainID:  big.NewInt(chainID),
		head:     head,
		times:    make(map[uint64]uint64),
		txs:      make(map[common.Hash]*types.Transaction),
		receipts: make(map[common.Hash]*types.Receipt),
		calls:    make(map[callKey]callEntry),
		balances: make(map[common.Address]*big.Int),
		failures: make(map[string]error),
		counts:   make(map[string]int),
	}
}

func (b *Backend) SetHead(head uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = head
}

func (b *Backend) SetBlockTime(block, unixSeconds uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.times[block] = unixSeconds
}

// Fail 令某个方法返回 err, err 为 nil 时恢复
func (b *Backend) Fail(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, method)
		return
	}
	b.failures[method] = err
}

// Calls 某方法被调用的次数
func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[method]
}

func (b *Backend) enter(method string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[method]++
	return b.failures[method]
}

func (b *Backend) AddLog(l types.Log) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs = append(b.logs, l)
}

func (b *Backend) AddTx(tx *types.Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txs[tx.Hash()] = tx
}

func (b *Backend) SetBalance(account common.Address, balance *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = balance
}

// HandleCall 注册 contract.method 的返回
func (b *Backend) HandleCall(contract common.Address, contractABI abi.ABI, method string, handler CallHandler) {
	m, ok := contractABI.Methods[method]
	if !ok {
		panic(fmt.Sprintf("method %s not in abi", method))
	}
	var selector [4]byte
	copy(selector[:], m.ID)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[callKey{contract: contract, selector: selector}] = callEntry{method: m, handler: handler}
}

// Returns 固定返回值的 CallHandler
func Returns(values ...interface{}) CallHandler {
	return func([]interface{}) ([]interface{}, error) {
		return values, nil
	}
}

func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	if err := b.enter("BlockNumber"); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head, nil
}

func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := b.enter("HeaderByNumber"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := number.Uint64()
	ts, ok := b.times[n]
	if !ok {
		ts = 1_700_000_000 + n*3
	}
	return &types.Header{Number: new(big.Int).Set(number), Time: ts, Difficulty: big.NewInt(0)}, nil
}

func (b *Backend) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	if err := b.enter("TransactionByHash"); err != nil {
		return nil, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	tx, ok := b.txs[hash]
	if !ok {
		return nil, false, ErrNotFound
	}
	return tx, false, nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := b.enter("TransactionReceipt"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.receipts[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (b *Backend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if err := b.enter("FilterLogs"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []types.Log
	for _, l := range b.logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
			continue
		}
		if !matchTopics(q.Topics, l.Topics) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (b *Backend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := b.enter("CallContract"); err != nil {
		return nil, err
	}
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("invalid call")
	}
	var selector [4]byte
	copy(selector[:], msg.Data[:4])

	b.mu.Lock()
	entry, ok := b.calls[callKey{contract: *msg.To, selector: selector}]
	b.mu.Unlock()
	if !ok {
		return nil, errors.New("execution reverted")
	}

	args, err := entry.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	values, err := entry.handler(args)
	if err != nil {
		return nil, err
	}
	return entry.method.Outputs.Pack(values...)
}

func (b *Backend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if err := b.enter("BalanceAt"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if bal, ok := b.balances[account]; ok {
		return bal, nil
	}
	return big.NewInt(0), nil
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

func matchTopics(filter [][]common.Hash, topics []common.Hash) bool {
	if len(filter) > len(topics) {
		return false
	}
	for i, set := range filter {
		if len(set) == 0 {
			continue
		}
		found := false
		for _, h := range set {
			if topics[i] == h {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// NewKey 固定种子生成测试私钥
func NewKey(seed byte) *ecdsa.PrivateKey {
	raw := make([]byte, 32)
	raw[31] = seed
	raw[0] = 0x42
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		panic(err)
	}
	return key
}

func KeyAddress(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// SignTx 构造并签名一笔交易, 同时登记到 backend
func (b *Backend) SignTx(key *ecdsa.PrivateKey, nonce uint64, to common.Address, value *big.Int, data []byte) *types.Transaction {
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      200_000,
		GasPrice: big.NewInt(1_000_000_000),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(b.ChainID), key)
	if err != nil {
		panic(err)
	}
	b.AddTx(signed)
	return signed
}
