package pricing

import (
	"web3-launchpad/internal/launchpad/model"

	"github.com/shopspring/decimal"
)

// PoolFeeRate UniswapV2 手续费 0.3%
var PoolFeeRate = decimal.RequireFromString("0.003")

// Reserves 毕业后交易对储备 (人类单位)
type Reserves struct {
	Token decimal.Decimal
	Base  decimal.Decimal
}

// SpotPrice 每个 token 的原生币价格
func (r Reserves) SpotPrice() decimal.Decimal {
	if !r.Token.IsPositive() {
		return decimal.Zero
	}
	return r.Base.Div(r.Token)
}

// QuoteFromReserves 恒定乘积报价: buy 时 amountIn 为原生币, sell 时为 token
func QuoteFromReserves(r Reserves, side model.TradeType, amountIn decimal.Decimal) model.Quote {
	if !amountIn.IsPositive() || !r.Token.IsPositive() || !r.Base.IsPositive() {
		return model.ZeroQuote()
	}

	reserveIn, reserveOut := r.Base, r.Token
	if side == model.TradeTypeSell {
		reserveIn, reserveOut = r.Token, r.Base
	}

	inAfterFee := amountIn.Mul(decimal.NewFromInt(1).Sub(PoolFeeRate))
	out := inAfterFee.Mul(reserveOut).Div(reserveIn.Add(inAfterFee))
	if !out.IsPositive() {
		return model.ZeroQuote()
	}

	// 现价 vs 成交价, 单位: out/in
	spot := reserveOut.Div(reserveIn)
	effective := out.Div(amountIn)
	impact := decimal.Max(decimal.Zero, spot.Sub(effective).Div(spot).Mul(hundred))

	return model.Quote{
		PriceImpact:  impact,
		OutputAmount: out,
		Fee:          amountIn.Mul(PoolFeeRate),
	}
}
