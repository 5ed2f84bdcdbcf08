package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"testing"
	"time"

	"addrstats/internal/analytics"
	apperrors "addrstats/internal/errors"
	"addrstats/internal/provider"
	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	target = "0x1111111111111111111111111111111111111111"
	peer   = "0x2222222222222222222222222222222222222222"
	other  = "0x3333333333333333333333333333333333333333"
)

var today = time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type fakeTransactions struct {
	txs   []models.RawTransaction
	err   error
	delay time.Duration
	calls int
	mu    sync.Mutex
}

func (f *fakeTransactions) Name() string { return "fake" }

func (f *fakeTransactions) FetchTransactions(ctx context.Context, address common.Address) ([]models.RawTransaction, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.txs, nil
}

type fakeBalance struct {
	balance *big.Int
	err     error
}

func (f fakeBalance) BalanceAt(ctx context.Context, address common.Address) (*big.Int, error) {
	return f.balance, f.err
}

type recordingOutput struct {
	mu      sync.Mutex
	written []*models.AddressAnalytics
	err     error
}

func (r *recordingOutput) WriteAnalytics(a *models.AddressAnalytics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.written = append(r.written, a)
	return nil
}

func (r *recordingOutput) Close() error { return nil }

func raw(hash, from, to string, ts time.Time, value string) models.RawTransaction {
	return models.RawTransaction{
		Hash:            hash,
		BlockNumber:     "100",
		TimeStamp:       strconv.FormatInt(ts.Unix(), 10),
		From:            from,
		To:              to,
		Value:           value,
		Gas:             "21000",
		GasPrice:        "1000000000",
		GasUsed:         "21000",
		IsError:         "0",
		TxReceiptStatus: "1",
		Input:           "0x",
	}
}

func hash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

func newTestAnalyzer(txs *fakeTransactions, opts ...Option) *Analyzer {
	engine := analytics.NewEngine(analytics.WithClock(func() time.Time { return today }), analytics.WithLogger(quietLogger()))
	return NewAnalyzer(txs, quietLogger(), append([]Option{WithEngine(engine)}, opts...)...)
}

func TestAnalyzer_Analyze(t *testing.T) {
	txs := &fakeTransactions{txs: []models.RawTransaction{
		raw(hash(1), target, peer, today.Add(-48*time.Hour), "1000"),
		raw(hash(2), peer, target, today.Add(-24*time.Hour), "500"),
		raw(hash(3), target, other, today, "0"),
		// 重复记录
		raw(hash(3), target, other, today, "0"),
		// 缺少时间戳
		{Hash: hash(4), From: target, To: peer, Value: "1"},
		// 与目标地址无关
		raw(hash(5), peer, other, today, "7"),
	}}
	out := &recordingOutput{}
	a := newTestAnalyzer(txs, WithOutput(out), WithBalanceProvider(fakeBalance{balance: big.NewInt(42)}))

	result, err := a.Analyze(context.Background(), "  "+target+" ")
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress(target), result.Address)
	assert.Equal(t, 3, result.TotalTransactions)
	assert.Equal(t, 1, result.IgnoredTransactions)
	assert.Equal(t, 0, result.TotalValueTransferred.Cmp(big.NewInt(1500)))
	assert.Equal(t, 0, result.EthBalance.Cmp(big.NewInt(42)))
	assert.Equal(t, 3, result.ActiveDays)
	assert.Equal(t, 3, result.ActivityStreak.CurrentStreak)
	assert.True(t, result.ActivityStreak.IsActive)
	assert.Equal(t, 2, result.UniqueInteractedAddresses)

	require.Len(t, out.written, 1)
	assert.Same(t, result, out.written[0])

	stats := a.Stats()
	assert.Equal(t, int64(1), stats.Analyses)
	assert.Equal(t, int64(6), stats.TransactionsFetched)
	assert.Equal(t, int64(4), stats.Accepted)
	assert.Equal(t, int64(1), stats.Skipped)
	assert.Equal(t, int64(1), stats.Duplicates)
	assert.Equal(t, int64(1), stats.Ignored)
	assert.Equal(t, "fake", stats.Provider)
	assert.NotEmpty(t, stats.LastRunID)
	assert.Equal(t, 1, stats.Errors.Count(apperrors.ErrorTypeInvalidTransaction))
}

func TestAnalyzer_InvalidAddressBeforeFetch(t *testing.T) {
	tests := []string{"", "0x123", "1111111111111111111111111111111111111111xx", "0xZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZ"}

	for _, input := range tests {
		txs := &fakeTransactions{}
		a := newTestAnalyzer(txs)

		_, err := a.Analyze(context.Background(), input)
		require.Error(t, err, "input=%q", input)
		assert.ErrorIs(t, err, apperrors.ErrInvalidAddress)
		assert.Equal(t, 0, txs.calls)
		assert.Equal(t, int64(1), a.Stats().Failures)
	}
}

func TestAnalyzer_EmptyHistory(t *testing.T) {
	a := newTestAnalyzer(&fakeTransactions{txs: []models.RawTransaction{}})

	result, err := a.Analyze(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalTransactions)
	assert.Nil(t, result.FirstTransactionDate)
	assert.Empty(t, result.DailyActivity)
	assert.Equal(t, 0, result.EthBalance.Sign())
	assert.Equal(t, analytics.ProfileNewUser, result.Profile.Key)
}

func TestAnalyzer_ProviderError(t *testing.T) {
	rateLimited := apperrors.NewAppError(apperrors.ErrorTypeRateLimit, apperrors.SeverityMedium, "RATE_LIMIT_EXCEEDED", "限流")
	out := &recordingOutput{}
	a := newTestAnalyzer(&fakeTransactions{err: rateLimited}, WithOutput(out))

	_, err := a.Analyze(context.Background(), target)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeRateLimited, appErr.PublicCode())
	assert.Empty(t, out.written)
	assert.Equal(t, int64(1), a.Stats().Failures)
}

func TestAnalyzer_FailureLeavesSharedErrorsUntouched(t *testing.T) {
	empty := NewAnalyzer(provider.NewFallbackProvider(quietLogger()), quietLogger())
	_, err := empty.Analyze(context.Background(), target)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNoProvider))

	// 数据源直接返回预定义错误时，并发失败也不能修改它
	shared := newTestAnalyzer(&fakeTransactions{err: apperrors.ErrExplorerAPIKey})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := shared.Analyze(context.Background(), target)
			assert.True(t, errors.Is(err, apperrors.ErrExplorerAPIKey))
		}()
	}
	wg.Wait()

	assert.Empty(t, apperrors.ErrNoProvider.Component)
	assert.Nil(t, apperrors.ErrNoProvider.Address)
	assert.Empty(t, apperrors.ErrExplorerAPIKey.Component)

	stats := shared.Stats().Errors
	assert.Equal(t, 4, stats.ErrorsByComponent["analyzer"])
}

func TestAnalyzer_BalanceFailureDegradesToZero(t *testing.T) {
	txs := &fakeTransactions{txs: []models.RawTransaction{raw(hash(1), target, peer, today, "1")}}
	a := newTestAnalyzer(txs, WithBalanceProvider(fakeBalance{err: errors.New("connection refused")}))

	result, err := a.Analyze(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, 0, result.EthBalance.Sign())
	assert.Equal(t, int64(1), a.Stats().BalanceFailures)
}

func TestAnalyzer_FetchTimeout(t *testing.T) {
	a := newTestAnalyzer(&fakeTransactions{delay: time.Second}, WithFetchTimeout(20*time.Millisecond))

	_, err := a.Analyze(context.Background(), target)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNetworkTimeout)
}

func TestAnalyzer_OutputFailureKeepsResult(t *testing.T) {
	txs := &fakeTransactions{txs: []models.RawTransaction{raw(hash(1), target, peer, today, "1")}}
	out := &recordingOutput{err: errors.New("broker down")}
	a := newTestAnalyzer(txs, WithOutput(out))

	result, err := a.Analyze(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalTransactions)
	assert.Equal(t, int64(1), a.Stats().OutputFailures)
}

func TestAnalyzer_StrictValidationDropsIncompleteRecords(t *testing.T) {
	incomplete := raw(hash(2), target, peer, today, "1")
	incomplete.BlockNumber = ""

	txs := &fakeTransactions{txs: []models.RawTransaction{raw(hash(1), target, peer, today, "1"), incomplete}}
	a := newTestAnalyzer(txs, WithStrictValidation(true))

	result, err := a.Analyze(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalTransactions)
	assert.Equal(t, int64(1), a.Stats().Skipped)
}

func TestAnalyzer_Concurrent(t *testing.T) {
	txs := &fakeTransactions{txs: []models.RawTransaction{
		raw(hash(1), target, peer, today, "1"),
		raw(hash(2), peer, target, today.Add(-24*time.Hour), "2"),
	}}
	a := newTestAnalyzer(txs)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := a.Analyze(context.Background(), target)
			assert.NoError(t, err)
			assert.Equal(t, 2, result.TotalTransactions)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(8), a.Stats().Analyses)
}
