// Package analyzer 串联地址校验、数据获取、规范化、聚合与输出的单次分析流程
package analyzer

import (
	"context"
	stderrors "errors"
	"math/big"
	"sync"
	"time"

	"addrstats/internal/analytics"
	"addrstats/internal/errors"
	"addrstats/internal/logging"
	"addrstats/internal/normalizer"
	"addrstats/internal/output"
	"addrstats/internal/provider"
	"addrstats/internal/validation"
	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const componentName = "analyzer"

// DefaultFetchTimeout 默认数据获取超时
const DefaultFetchTimeout = 2 * time.Minute

// Stats 分析诊断统计
type Stats struct {
	Analyses            int64                  `json:"analyses"`
	Failures            int64                  `json:"failures"`
	TransactionsFetched int64                  `json:"transactions_fetched"`
	Accepted            int64                  `json:"accepted"`
	Skipped             int64                  `json:"skipped"`
	Duplicates          int64                  `json:"duplicates"`
	Ignored             int64                  `json:"ignored"`
	BalanceFailures     int64                  `json:"balance_failures"`
	OutputFailures      int64                  `json:"output_failures"`
	LastRunID           string                 `json:"last_run_id,omitempty"`
	LastDuration        string                 `json:"last_duration,omitempty"`
	Provider            string                 `json:"provider"`
	Errors              *errors.ErrorStats     `json:"errors"`
	Validation          map[string]interface{} `json:"validation"`
}

// Analyzer 地址分析编排器，可被多个请求并发使用
type Analyzer struct {
	transactions provider.TransactionProvider
	balances     provider.BalanceProvider
	normalizer   *normalizer.Normalizer
	engine       *analytics.Engine
	validator    *validation.Validator
	output       output.Output
	handler      *errors.ErrorHandler
	logger       *logrus.Logger
	fetchTimeout time.Duration

	mu    sync.Mutex
	stats Stats
}

// Option 编排器选项
type Option func(*Analyzer)

// WithBalanceProvider 设置余额数据源，未设置时余额为 0
func WithBalanceProvider(p provider.BalanceProvider) Option {
	return func(a *Analyzer) {
		a.balances = p
	}
}

// WithOutput 设置结果输出
func WithOutput(out output.Output) Option {
	return func(a *Analyzer) {
		if out != nil {
			a.output = out
		}
	}
}

// WithEngine 替换聚合引擎
func WithEngine(engine *analytics.Engine) Option {
	return func(a *Analyzer) {
		if engine != nil {
			a.engine = engine
		}
	}
}

// WithFetchTimeout 数据获取超时
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.fetchTimeout = d
		}
	}
}

// WithStrictValidation 严格模式：拒绝不完整的原始记录，结果不一致时报错
func WithStrictValidation(strict bool) Option {
	return func(a *Analyzer) {
		a.validator.SetStrictMode(strict)
	}
}

// NewAnalyzer 创建编排器
func NewAnalyzer(transactions provider.TransactionProvider, logger *logrus.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	handler := errors.NewErrorHandler(logger)

	a := &Analyzer{
		transactions: transactions,
		normalizer:   normalizer.NewNormalizer(logger, handler),
		engine:       analytics.NewEngine(analytics.WithLogger(logger)),
		validator:    validation.NewValidator(logger, false),
		output:       output.NoopOutput{},
		handler:      handler,
		logger:       logger,
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze 对单个地址执行完整分析。
// 地址无效时在任何网络请求之前返回 InvalidAddress 错误。
func (a *Analyzer) Analyze(ctx context.Context, rawAddress string) (*models.AddressAnalytics, error) {
	start := time.Now()
	runID := uuid.NewString()

	address, err := validation.ValidateSearchInput(rawAddress)
	if err != nil {
		return nil, a.fail(err)
	}

	log := logging.NewAnalysisLogger(a.logger, runID, address.Hex())
	log.Info("开始分析地址")

	raws, balance, err := a.fetch(ctx, address, log)
	if err != nil {
		log.Errorf("获取数据失败: %v", err)
		return nil, a.fail(err)
	}

	raws, rejected := a.prevalidate(raws)
	txs, report := a.normalizer.NormalizeAll(raws)
	result := a.engine.ComputeAnalytics(address, txs, balance)

	if vr := a.validator.ValidateAnalytics(result); !vr.Valid {
		if a.validator.IsStrictMode() {
			return nil, a.fail(vr.Errors[0])
		}
		log.Warnf("分析结果校验未通过: %v", vr.Errors[0])
	}

	outputFailed := false
	if err := a.output.WriteAnalytics(result); err != nil {
		outputFailed = true
		a.handler.HandleError(a.asAppError(err).WithAddress(address.Hex()))
	}

	duration := time.Since(start)
	a.record(runID, duration, len(raws)+rejected, report, rejected, result.IgnoredTransactions, outputFailed)

	log.WithFields(logrus.Fields{
		"transactions": result.TotalTransactions,
		"skipped":      report.Skipped + rejected,
		"duplicates":   report.Duplicates,
		"ignored":      result.IgnoredTransactions,
		"active_days":  result.ActiveDays,
		"profile":      result.Profile.Key,
		"duration":     duration.String(),
	}).Info("地址分析完成")

	return result, nil
}

// fetch 并发获取交易和余额。余额查询失败时按 0 处理。
func (a *Analyzer) fetch(ctx context.Context, address common.Address, log *logrus.Entry) ([]models.RawTransaction, *big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	var (
		raws    []models.RawTransaction
		balance = new(big.Int)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := a.transactions.FetchTransactions(gctx, address)
		if err != nil {
			return err
		}
		raws = txs
		return nil
	})

	if a.balances != nil {
		g.Go(func() error {
			b, err := a.balances.BalanceAt(gctx, address)
			if err != nil || b == nil {
				if gctx.Err() == nil {
					log.Warnf("查询余额失败，按0处理: %v", err)
					a.mu.Lock()
					a.stats.BalanceFailures++
					a.mu.Unlock()
				}
				return nil
			}
			balance = b
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, nil, errors.WrapError(err, errors.ErrorTypeTimeout, errors.SeverityMedium, "NETWORK_TIMEOUT", "获取交易数据超时")
		}
		return nil, nil, err
	}

	log.Debugf("获取到 %d 条原始交易，余额 %s wei", len(raws), balance.String())
	return raws, balance, nil
}

// prevalidate 严格模式下剔除不完整的原始记录
func (a *Analyzer) prevalidate(raws []models.RawTransaction) ([]models.RawTransaction, int) {
	if !a.validator.IsStrictMode() {
		return raws, 0
	}

	kept := make([]models.RawTransaction, 0, len(raws))
	for _, raw := range raws {
		if vr := a.validator.ValidateTransaction(raw); !vr.Valid {
			continue
		}
		kept = append(kept, raw)
	}
	return kept, len(raws) - len(kept)
}

func (a *Analyzer) asAppError(err error) *errors.AppError {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return errors.WrapError(err, errors.ErrorTypeNetwork, errors.SeverityMedium, errors.CodeUnknown, "分析失败").
			WithComponent(componentName)
	}
	// 链上的 AppError 可能是共享的预定义错误，附加信息前先复制
	appErr = appErr.Clone()
	if appErr.Component == "" {
		appErr.WithComponent(componentName)
	}
	return appErr
}

// fail 记录失败并返回原始错误，调用方可继续用 errors.Is / AsAppError 判断
func (a *Analyzer) fail(err error) error {
	if !stderrors.Is(err, context.Canceled) {
		a.handler.HandleError(a.asAppError(err))
	}

	a.mu.Lock()
	a.stats.Failures++
	a.mu.Unlock()
	return err
}

func (a *Analyzer) record(runID string, d time.Duration, fetched int, report *normalizer.Report, rejected, ignored int, outputFailed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.Analyses++
	a.stats.TransactionsFetched += int64(fetched)
	a.stats.Accepted += int64(report.Accepted)
	a.stats.Skipped += int64(report.Skipped + rejected)
	a.stats.Duplicates += int64(report.Duplicates)
	a.stats.Ignored += int64(ignored)
	if outputFailed {
		a.stats.OutputFailures++
	}
	a.stats.LastRunID = runID
	a.stats.LastDuration = d.String()
}

// Stats 返回诊断统计快照
func (a *Analyzer) Stats() Stats {
	a.mu.Lock()
	s := a.stats
	a.mu.Unlock()

	s.Provider = a.transactions.Name()
	s.Errors = a.handler.GetStats()
	s.Validation = a.validator.GetValidationStats()
	return s
}

// ErrorHandler 返回编排器使用的错误处理器
func (a *Analyzer) ErrorHandler() *errors.ErrorHandler {
	return a.handler
}

// Close 关闭输出
func (a *Analyzer) Close() error {
	return a.output.Close()
}
