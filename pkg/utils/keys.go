package utils

import "fmt"

func TradesKey(chainId uint64, tokenAddress string, limit int) string {
	return fmt.Sprintf("launchpad:trades:%d:%s:%d", chainId, tokenAddress, limit)
}

func HoldersKey(chainId uint64, tokenAddress string, limit int) string {
	return fmt.Sprintf("launchpad:holders:%d:%s:%d", chainId, tokenAddress, limit)
}

func ICOStatsKey(chainId uint64, tokenAddress string) string {
	return fmt.Sprintf("launchpad:ico_stats:%d:%s", chainId, tokenAddress)
}

func TokenInfoKey(chainId uint64, tokenAddress string) string {
	return fmt.Sprintf("launchpad:token_info:%d:%s", chainId, tokenAddress)
}

func LatestTradesKey(chainId uint64, tokenAddress string) string {
	return fmt.Sprintf("launchpad:latest_trades:%d:%s", chainId, tokenAddress)
}

func TokenViewKey(chainId uint64, tokenAddress string) string {
	return fmt.Sprintf("launchpad:token_view:%d:%s", chainId, tokenAddress)
}

// LatestTradesDataKey 与 LatestTradesKey 配套的 hash, field 为成交 id
func LatestTradesDataKey(chainId uint64, tokenAddress string) string {
	return LatestTradesKey(chainId, tokenAddress) + ":data"
}
