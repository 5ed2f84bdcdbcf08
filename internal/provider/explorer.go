package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"addrstats/internal/config"
	"addrstats/internal/errors"
	"addrstats/internal/logging"
	"addrstats/internal/retry"
	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// ExplorerName 区块浏览器数据源名称
const ExplorerName = "explorer"

// resultWindow 浏览器分页窗口上限，page × offset 不能超过该值
const resultWindow = 10000

const noTransactionsMessage = "No transactions found"

// explorerResponse txlist 接口响应。出错时 result 为字符串。
type explorerResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// ExplorerProvider Etherscan v2 兼容的 txlist 数据源
type ExplorerProvider struct {
	cfg     *config.ExplorerConfig
	chainID int64
	client  *retryablehttp.Client
	retrier *retry.Retrier
	logger  *logrus.Entry
}

// NewExplorerProvider 创建区块浏览器数据源
func NewExplorerProvider(cfg *config.ExplorerConfig, chainID int64, logger *logrus.Logger) *ExplorerProvider {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.HTTPClient.Timeout = cfg.Timeout
	client.RetryMax = 1
	client.RetryWaitMin = cfg.RetryDelay
	client.RetryWaitMax = 5 * cfg.RetryDelay
	// 非 2xx 响应交给调用方按状态码分类
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &ExplorerProvider{
		cfg:     cfg,
		chainID: chainID,
		client:  client,
		retrier: retry.NewRetrier(retry.NewRetryConfig(cfg.MaxRetries, cfg.RetryDelay), logger),
		logger:  logging.NewProviderLogger(logger, ExplorerName),
	}
}

// Name 数据源名称
func (p *ExplorerProvider) Name() string {
	return ExplorerName
}

// FetchTransactions 按时间倒序分页拉取地址的普通交易
func (p *ExplorerProvider) FetchTransactions(ctx context.Context, address common.Address) ([]models.RawTransaction, error) {
	if !p.cfg.Enabled() {
		return nil, errors.ErrExplorerAPIKey.Clone()
	}

	offset := p.cfg.MaxOffset
	all := make([]models.RawTransaction, 0, offset)

	for page := 1; page <= p.pageLimit(); page++ {
		var batch []models.RawTransaction
		err := p.retrier.Execute(ctx, fmt.Sprintf("txlist page %d", page), func() error {
			var fetchErr error
			batch, fetchErr = p.fetchPage(ctx, address, page, offset)
			return fetchErr
		})
		if err != nil {
			return nil, err
		}

		all = append(all, batch...)
		p.logger.Debugf("第 %d 页获取 %d 条交易", page, len(batch))

		if len(batch) < offset {
			break
		}
	}

	p.logger.Infof("地址 %s 共获取 %d 条交易", address.Hex(), len(all))
	return tagSource(all, ExplorerName), nil
}

// pageLimit 最大页数，同时受 max_pages 和分页窗口限制
func (p *ExplorerProvider) pageLimit() int {
	limit := p.cfg.MaxPages
	if p.cfg.MaxOffset > 0 && resultWindow/p.cfg.MaxOffset < limit {
		limit = resultWindow / p.cfg.MaxOffset
	}
	return limit
}

// fetchPage 请求单页数据
func (p *ExplorerProvider) fetchPage(ctx context.Context, address common.Address, page, offset int) ([]models.RawTransaction, error) {
	reqURL, err := p.buildURL(address, page, offset)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfig, errors.SeverityHigh, "EXPLORER_URL_INVALID", "区块浏览器地址无效")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapError(err, errors.ErrorTypeNetwork, errors.SeverityMedium, "EXPLORER_REQUEST_FAILED", "区块浏览器请求失败").
			WithComponent(ExplorerName).
			WithAddress(address.Hex())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeNetwork, errors.SeverityMedium, "EXPLORER_READ_FAILED", "读取区块浏览器响应失败")
	}

	p.logger.WithFields(logrus.Fields{
		"page":        page,
		"status_code": resp.StatusCode,
		"duration":    time.Since(start).String(),
	}).Debug("区块浏览器响应")

	if err := classifyHTTPStatus(resp.StatusCode); err != nil {
		return nil, err.WithComponent(ExplorerName).WithAddress(address.Hex()).WithContext("page", page)
	}

	return parseExplorerResponse(body)
}

func (p *ExplorerProvider) buildURL(address common.Address, page, offset int) (string, error) {
	u, err := url.Parse(p.cfg.BaseURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("chainid", strconv.FormatInt(p.chainID, 10))
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", address.Hex())
	q.Set("startblock", "0")
	q.Set("endblock", "99999999")
	q.Set("page", strconv.Itoa(page))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("sort", "desc")
	q.Set("apikey", p.cfg.APIKey)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// classifyHTTPStatus 将 HTTP 状态码映射为错误
func classifyHTTPStatus(status int) *errors.AppError {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return errors.NewAppError(errors.ErrorTypeRateLimit, errors.SeverityMedium, "RATE_LIMIT_EXCEEDED",
			"区块浏览器请求频率超限")
	case status >= 500:
		return errors.NewAppError(errors.ErrorTypeExternalAPI, errors.SeverityMedium, "EXPLORER_API_FAILED",
			fmt.Sprintf("区块浏览器服务异常: HTTP %d", status))
	default:
		e := errors.NewAppError(errors.ErrorTypeExternalAPI, errors.SeverityMedium, "EXPLORER_API_FAILED",
			fmt.Sprintf("区块浏览器请求被拒绝: HTTP %d", status))
		e.Retryable = false
		return e
	}
}

// parseExplorerResponse 解析 txlist 响应
func parseExplorerResponse(body []byte) ([]models.RawTransaction, error) {
	var resp explorerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeSerialization, errors.SeverityMedium, "EXPLORER_RESPONSE_INVALID",
			"区块浏览器响应格式无效")
	}

	if resp.Status == "1" {
		var txs []models.RawTransaction
		if err := json.Unmarshal(resp.Result, &txs); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeSerialization, errors.SeverityMedium, "EXPLORER_RESPONSE_INVALID",
				"交易列表格式无效")
		}
		return txs, nil
	}

	if resp.Message == noTransactionsMessage {
		return []models.RawTransaction{}, nil
	}

	var detail string
	if err := json.Unmarshal(resp.Result, &detail); err != nil {
		detail = string(resp.Result)
	}
	return nil, classifyAPIError(resp.Message, detail)
}

// classifyAPIError status=0 时根据 message/result 判断错误类型
func classifyAPIError(message, detail string) *errors.AppError {
	text := strings.ToLower(message + " " + detail)
	msg := strings.TrimSpace(message + ": " + detail)

	switch {
	case strings.Contains(text, "rate limit"):
		return errors.NewAppError(errors.ErrorTypeRateLimit, errors.SeverityMedium, "RATE_LIMIT_EXCEEDED", msg).
			WithComponent(ExplorerName)
	case strings.Contains(text, "api key"):
		e := errors.NewAppError(errors.ErrorTypeExternalAPI, errors.SeverityHigh, "EXPLORER_API_KEY", msg).
			WithComponent(ExplorerName)
		e.Retryable = false
		return e
	default:
		e := errors.NewAppError(errors.ErrorTypeExternalAPI, errors.SeverityMedium, "EXPLORER_API_FAILED", msg).
			WithComponent(ExplorerName)
		e.Retryable = false
		return e
	}
}
