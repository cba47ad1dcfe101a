package utils

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// IsEvmAddress 校验 0x 开头的 20 字节十六进制地址
func IsEvmAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return false
	}
	return common.IsHexAddress(addr)
}

// NormalizeAddress 小写地址, 用于比较和缓存 key
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ChecksumAddress 将 EVM 地址转换为 EIP-55 Checksum 格式, 用于展示
func ChecksumAddress(addr string) string {
	if addr == "" {
		return ""
	}
	return common.HexToAddress(strings.TrimSpace(addr)).Hex()
}

// AdjustDecimals 链上整数 -> 带精度数值
func AdjustDecimals(value *big.Int, decimals uint8) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}

// ToBaseUnits 带精度数值 -> 链上整数 (截断多余小数)
func ToBaseUnits(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

// IsUnixSeconds 检查时间戳是否为秒级
func IsUnixSeconds(ts int64) bool {
	const maxUnix = 4_102_444_800 // 2100-01-01 00:00:00 UTC
	return ts >= 0 && ts < maxUnix
}
