package launchpad

import (
	"web3-launchpad/internal/launchpad/config"
	"web3-launchpad/internal/launchpad/repository"
	"web3-launchpad/internal/launchpad/service"
	"web3-launchpad/internal/launchpad/stream"

	"go.uber.org/zap"
)

// buildBundles 按配置为每条链组装读组件
func buildBundles(cfg config.Config, repo repository.Repository, tl *zap.Logger, sinks ...stream.TradeSink) []*service.ChainBundle {
	bundles := make([]*service.ChainBundle, 0, len(cfg.Chains))
	for _, cc := range cfg.Chains {
		client, ok := repo.GetChainClient(cc.ChainID)
		if !ok {
			tl.Warn("chain client missing, skip chain", zap.Uint64("chain_id", cc.ChainID))
			continue
		}
		bundles = append(bundles, service.NewChainBundle(client, cc, cfg.Launchpad, repo.GetPriceFeed(), tl, sinks...))
	}
	return bundles
}
