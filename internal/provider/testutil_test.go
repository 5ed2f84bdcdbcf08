package provider

import (
	"context"
	"errors"
	"sync/atomic"

	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

var (
	addrA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	addrB = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// stubProvider 固定返回结果的数据源
type stubProvider struct {
	name  string
	txs   []models.RawTransaction
	err   error
	calls atomic.Int32
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) FetchTransactions(ctx context.Context, address common.Address) ([]models.RawTransaction, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.RawTransaction, len(s.txs))
	copy(out, s.txs)
	return tagSource(out, s.name), nil
}

var errUpstream = errors.New("service unavailable")
