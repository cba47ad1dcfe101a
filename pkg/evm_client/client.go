package evm_client

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Dial 连接 evm rpc，失败返回 error 由调用方决定是否退出
func Dial(rawurl string, timeout time.Duration) (*ethclient.Client, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc %s: %w", rawurl, err)
	}

	// 校验节点可用
	if _, err := client.ChainID(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("evm rpc %s chain id: %w", rawurl, err)
	}
	return client, nil
}
