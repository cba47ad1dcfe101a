package trade

import (
	"context"
	"errors"
	"testing"

	"web3-launchpad/internal/launchpad/model"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fakeMQ struct {
	fails int
	calls int
	msgs  []kafka.Message
}

func (f *fakeMQ) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.calls++
	if f.calls <= f.fails {
		return errors.New("broker unavailable")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func tradeMsg(token, tx string) model.TradeMessage {
	t := model.NewTrade(model.TradeTypeBuy, token, "0xwallet", decimal.NewFromInt(100), decimal.RequireFromString("0.1"), tx, 10, 0, 1_700_000_000_000)
	return model.TradeMessage{ChainID: 97, Trade: *t}
}

func TestKafkaTradeWriter(t *testing.T) {
	mq := &fakeMQ{fails: 1}
	w := NewKafkaTradeWriter(mq, zap.NewNop(), "launchpad.trade")

	err := w.BWrite(context.Background(), []model.TradeMessage{tradeMsg("0xaaa", "0x01"), tradeMsg("0xbbb", "0x02")})
	if err != nil {
		t.Fatal(err)
	}
	if mq.calls != 2 {
		t.Fatalf("calls = %d, want retry after first failure", mq.calls)
	}
	if len(mq.msgs) != 2 {
		t.Fatalf("messages = %d", len(mq.msgs))
	}
	if string(mq.msgs[0].Key) != "0xaaa" || mq.msgs[0].Topic != "launchpad.trade" {
		t.Fatalf("message 0 = key %s topic %s", mq.msgs[0].Key, mq.msgs[0].Topic)
	}

	var decoded model.TradeMessage
	if err := sonic.Unmarshal(mq.msgs[1].Value, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ChainID != 97 || decoded.Trade.TxHash != "0x02" || !decoded.Trade.Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestKafkaTradeWriterGivesUp(t *testing.T) {
	mq := &fakeMQ{fails: RETRY_COUNT}
	w := NewKafkaTradeWriter(mq, zap.NewNop(), "launchpad.trade")
	if err := w.BWrite(context.Background(), []model.TradeMessage{tradeMsg("0xaaa", "0x01")}); err == nil {
		t.Fatal("want error after retries exhausted")
	}
	if err := w.BWrite(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
}
