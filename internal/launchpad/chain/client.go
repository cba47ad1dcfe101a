package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"web3-launchpad/internal/launchpad/monitor"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Backend rpc 节点能力, *ethclient.Client 满足该接口
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Options struct {
	ChainID        uint64
	RateLimit      int    // 每秒请求数, <=0 不限流
	LogChunkBlocks uint64 // 单次 eth_getLogs 最大区块跨度
}

// BlockInfo 区块头中需要的字段
type BlockInfo struct {
	Number    uint64
	Hash      common.Hash
	Timestamp int64 // 毫秒
}

// TxDetail 交易详情, From 由签名恢复
type TxDetail struct {
	Hash  common.Hash
	From  common.Address
	To    *common.Address
	Value *big.Int
	Input []byte
}

// Client 链上读接口: 限流 + 指标 + 区块头缓存
type Client struct {
	backend     Backend
	chainID     uint64
	chainLabel  string
	signer      types.Signer
	limiter     *rate.Limiter
	logChunk    uint64
	headerCache *cache.Cache
	tl          *zap.Logger
}

func NewClient(backend Backend, opts Options, tl *zap.Logger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit)
	}
	if opts.LogChunkBlocks == 0 {
		opts.LogChunkBlocks = 5_000
	}
	return &Client{
		backend:     backend,
		chainID:     opts.ChainID,
		chainLabel:  strconv.FormatUint(opts.ChainID, 10),
		signer:      types.LatestSignerForChainID(new(big.Int).SetUint64(opts.ChainID)),
		limiter:     limiter,
		logChunk:    opts.LogChunkBlocks,
		headerCache: cache.New(10*time.Minute, time.Minute),
		tl:          tl.With(zap.Uint64("chain_id", opts.ChainID)),
	}
}

func (c *Client) ChainID() uint64 {
	return c.chainID
}

// do 统一处理限流和指标
func (c *Client) do(ctx context.Context, method string, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		monitor.RpcCalls.WithLabelValues(c.chainLabel, method, "throttled").Inc()
		return fmt.Errorf("%s: rate limiter: %w", method, err)
	}
	start := time.Now()
	err := fn()
	monitor.RpcDuration.WithLabelValues(c.chainLabel, method).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	monitor.RpcCalls.WithLabelValues(c.chainLabel, method, status).Inc()
	return err
}

func (c *Client) GetBlockNumber(ctx context.Context) (uint64, error) {
	var number uint64
	err := c.do(ctx, "eth_blockNumber", func() (err error) {
		number, err = c.backend.BlockNumber(ctx)
		return err
	})
	return number, err
}

func (c *Client) GetBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.do(ctx, "eth_getBalance", func() (err error) {
		balance, err = c.backend.BalanceAt(ctx, account, nil)
		return err
	})
	return balance, err
}

// GetBlock 区块时间会被多条日志重复查询, 本地缓存
func (c *Client) GetBlock(ctx context.Context, number uint64) (BlockInfo, error) {
	key := strconv.FormatUint(number, 10)
	if cached, found := c.headerCache.Get(key); found {
		return cached.(BlockInfo), nil
	}

	var header *types.Header
	err := c.do(ctx, "eth_getBlockByNumber", func() (err error) {
		header, err = c.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		return err
	})
	if err != nil {
		return BlockInfo{}, err
	}
	if header == nil {
		return BlockInfo{}, fmt.Errorf("block %d not found", number)
	}

	info := BlockInfo{
		Number:    number,
		Hash:      header.Hash(),
		Timestamp: int64(header.Time) * 1000,
	}
	c.headerCache.Set(key, info, cache.DefaultExpiration)
	return info, nil
}

func (c *Client) GetTransaction(ctx context.Context, hash common.Hash) (*TxDetail, error) {
	var tx *types.Transaction
	err := c.do(ctx, "eth_getTransactionByHash", func() (err error) {
		tx, _, err = c.backend.TransactionByHash(ctx, hash)
		return err
	})
	if err != nil {
		return nil, err
	}

	from, err := types.Sender(c.signer, tx)
	if err != nil {
		return nil, fmt.Errorf("recover sender of %s: %w", hash.Hex(), err)
	}
	return &TxDetail{
		Hash:  hash,
		From:  from,
		To:    tx.To(),
		Value: tx.Value(),
		Input: tx.Data(),
	}, nil
}

func (c *Client) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.do(ctx, "eth_getTransactionReceipt", func() (err error) {
		receipt, err = c.backend.TransactionReceipt(ctx, hash)
		return err
	})
	return receipt, err
}

// Call 使用 abi 打包调用参数并解析返回值
func (c *Client) Call(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var out []byte
	err = c.do(ctx, "eth_call", func() (err error) {
		out, err = c.backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, contract.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s on %s: empty result", method, contract.Hex())
	}

	values, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// ErrPartialLogs 部分区块区间查询失败, 返回的日志不完整
var ErrPartialLogs = errors.New("partial log scan")

// GetLogs 按 logChunk 切分区间查询; 单个区间失败跳过, 返回已取到的日志和 ErrPartialLogs
func (c *Client) GetLogs(ctx context.Context, q ethereum.FilterQuery, fromBlock, toBlock uint64) ([]types.Log, error) {
	if fromBlock > toBlock {
		return nil, nil
	}

	var (
		logs   []types.Log
		failed []error
	)
	for start := fromBlock; start <= toBlock; start += c.logChunk {
		end := start + c.logChunk - 1
		if end > toBlock || end < start {
			end = toBlock
		}

		query := q
		query.FromBlock = new(big.Int).SetUint64(start)
		query.ToBlock = new(big.Int).SetUint64(end)

		var chunk []types.Log
		err := c.do(ctx, "eth_getLogs", func() (err error) {
			chunk, err = c.backend.FilterLogs(ctx, query)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return logs, ctx.Err()
			}
			c.tl.Warn("getLogs chunk failed, skip", zap.Uint64("from", start), zap.Uint64("to", end), zap.Error(err))
			failed = append(failed, fmt.Errorf("blocks %d-%d: %w", start, end, err))
			continue
		}
		for _, l := range chunk {
			if !l.Removed {
				logs = append(logs, l)
			}
		}
		if end == toBlock {
			break
		}
	}

	if len(failed) > 0 {
		return logs, fmt.Errorf("%w: %d of the chunks failed: %w", ErrPartialLogs, len(failed), errors.Join(failed...))
	}
	return logs, nil
}

// WindowStart 最近 window 个区块的起点
func WindowStart(latest, window uint64) uint64 {
	if window == 0 || latest < window {
		return 0
	}
	return latest - window + 1
}
