package validation

import (
	"fmt"
	"regexp"
	"strings"

	"addrstats/internal/errors"
	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

const (
	addressLength     = 42
	maxSearchInputLen = 100
)

var (
	hashRegex         = regexp.MustCompile("^0x[0-9a-fA-F]{64}$")
	angleBracketRegex = regexp.MustCompile(`[<>]`)
	jsProtocolRegex   = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerRegex = regexp.MustCompile(`(?i)on\w+=`)
)

// ValidateAddress 校验地址格式并返回校验和形式的地址
func ValidateAddress(address string) (common.Address, error) {
	if address == "" {
		return common.Address{}, errors.NewInvalidAddress("地址不能为空")
	}
	if len(address) != addressLength {
		return common.Address{}, errors.NewInvalidAddress("地址长度必须为42个字符").WithAddress(address)
	}
	if !strings.HasPrefix(address, "0x") {
		return common.Address{}, errors.NewInvalidAddress("地址必须以0x开头").WithAddress(address)
	}
	if !common.IsHexAddress(address) {
		return common.Address{}, errors.NewInvalidAddress("以太坊地址格式无效").WithAddress(address)
	}
	return common.HexToAddress(address), nil
}

// SanitizeInput 清理用户输入中的标签、javascript: 协议和事件处理器
func SanitizeInput(input string) string {
	input = angleBracketRegex.ReplaceAllString(input, "")
	input = jsProtocolRegex.ReplaceAllString(input, "")
	input = eventHandlerRegex.ReplaceAllString(input, "")
	return strings.TrimSpace(input)
}

// ValidateSearchInput 清理并校验搜索输入
func ValidateSearchInput(input string) (common.Address, error) {
	sanitized := SanitizeInput(input)
	if sanitized == "" {
		return common.Address{}, errors.NewInvalidAddress("搜索内容不能为空")
	}
	if len(sanitized) > maxSearchInputLen {
		return common.Address{}, errors.NewInvalidAddress(
			fmt.Sprintf("搜索内容过长（最多%d个字符）", maxSearchInputLen))
	}
	return ValidateAddress(sanitized)
}

// ValidateRawTransaction 校验原始交易记录的必填字段
func ValidateRawTransaction(raw models.RawTransaction) error {
	required := []struct {
		name  string
		value string
	}{
		{"hash", raw.Hash},
		{"blockNumber", raw.BlockNumber},
		{"timeStamp", raw.TimeStamp},
		{"from", raw.From},
		{"value", raw.Value},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return errors.NewInvalidTransaction(raw.Hash, "交易缺少必填字段: "+f.name)
		}
	}
	if !strings.HasPrefix(raw.Hash, "0x") {
		return errors.NewInvalidTransaction(raw.Hash, "交易哈希必须是十六进制字符串")
	}
	return nil
}

// Validator 数据验证器
type Validator struct {
	logger       *logrus.Logger
	strictMode   bool // 严格模式
	errorHandler *errors.ErrorHandler
	rules        map[string]ValidationRule
}

// ValidationRule 验证规则接口
type ValidationRule interface {
	Validate(data interface{}) error
	Name() string
	Description() string
}

// ValidationResult 验证结果
type ValidationResult struct {
	Valid    bool               `json:"valid"`
	Errors   []*errors.AppError `json:"errors,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	DataType string             `json:"data_type"`
}

// NewValidator 创建数据验证器
func NewValidator(logger *logrus.Logger, strictMode bool) *Validator {
	v := &Validator{
		logger:       logger,
		strictMode:   strictMode,
		errorHandler: errors.NewErrorHandler(logger),
		rules:        make(map[string]ValidationRule),
	}

	v.registerDefaultRules()

	return v
}

// registerDefaultRules 注册默认验证规则
func (v *Validator) registerDefaultRules() {
	v.AddRule(NewTransactionValidationRule())
	v.AddRule(NewAnalyticsValidationRule())
	v.AddRule(NewAddressValidationRule())
	v.AddRule(NewHashValidationRule())
}

// AddRule 添加验证规则
func (v *Validator) AddRule(rule ValidationRule) {
	v.rules[rule.Name()] = rule
	v.logger.Debugf("已注册验证规则: %s", rule.Name())
}

// ValidateTransaction 验证原始交易记录
func (v *Validator) ValidateTransaction(raw models.RawTransaction) *ValidationResult {
	result := newResult("transaction")

	if err := ValidateRawTransaction(raw); err != nil {
		v.fail(result, err)
		return result
	}
	v.applyRule(result, "transaction", raw)

	// 严格模式下要求完整的32字节哈希
	if v.strictMode {
		v.applyRule(result, "hash", raw.Hash)
	} else if !isValidHash(raw.Hash) {
		result.Warnings = append(result.Warnings, "交易哈希不是32字节十六进制")
	}

	return result
}

// ValidateAnalytics 验证分析结果的一致性
func (v *Validator) ValidateAnalytics(a *models.AddressAnalytics) *ValidationResult {
	result := newResult("analytics")
	if a == nil {
		v.fail(result, errors.NewAppError(errors.ErrorTypeValidation, errors.SeverityMedium,
			"ANALYTICS_EMPTY", "分析结果为空"))
		return result
	}

	v.applyRule(result, "address", a.Address.Hex())
	v.applyRule(result, "analytics", a)

	if a.ActivityStreak.IsActive && a.ActivityStreak.CurrentStreak == 0 {
		result.Warnings = append(result.Warnings, "活跃状态下当前连续天数为0")
	}
	return result
}

// applyRule 执行指定规则
func (v *Validator) applyRule(result *ValidationResult, name string, data interface{}) {
	rule, exists := v.rules[name]
	if !exists {
		return
	}
	if err := rule.Validate(data); err != nil {
		v.fail(result, err)
	}
}

// fail 将错误记录到结果中
func (v *Validator) fail(result *ValidationResult, err error) {
	result.Valid = false
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.WrapError(err, errors.ErrorTypeValidation, errors.SeverityMedium,
			"VALIDATION_FAILED", "数据验证失败")
	}
	result.Errors = append(result.Errors, appErr.WithComponent("validator"))
	v.errorHandler.HandleError(appErr)
}

func newResult(dataType string) *ValidationResult {
	return &ValidationResult{
		Valid:    true,
		DataType: dataType,
		Errors:   make([]*errors.AppError, 0),
		Warnings: make([]string, 0),
	}
}

// isValidHash 验证哈希格式
func isValidHash(hash string) bool {
	return hashRegex.MatchString(hash)
}

// TransactionValidationRule 交易验证规则
type TransactionValidationRule struct{}

func NewTransactionValidationRule() *TransactionValidationRule {
	return &TransactionValidationRule{}
}

func (r *TransactionValidationRule) Name() string {
	return "transaction"
}

func (r *TransactionValidationRule) Description() string {
	return "原始交易记录验证规则"
}

func (r *TransactionValidationRule) Validate(data interface{}) error {
	raw, ok := data.(models.RawTransaction)
	if !ok {
		return fmt.Errorf("数据类型不是交易")
	}

	if !common.IsHexAddress(raw.From) {
		return errors.NewInvalidTransaction(raw.Hash, "发送方地址格式无效")
	}
	if raw.To != "" && !common.IsHexAddress(raw.To) {
		return errors.NewInvalidTransaction(raw.Hash, "接收方地址格式无效")
	}
	if strings.HasPrefix(strings.TrimSpace(raw.Value), "-") {
		return errors.NewInvalidTransaction(raw.Hash, "交易金额不能为负数")
	}

	return nil
}

// AnalyticsValidationRule 分析结果验证规则
type AnalyticsValidationRule struct{}

func NewAnalyticsValidationRule() *AnalyticsValidationRule {
	return &AnalyticsValidationRule{}
}

func (r *AnalyticsValidationRule) Name() string {
	return "analytics"
}

func (r *AnalyticsValidationRule) Description() string {
	return "分析结果一致性验证规则"
}

func (r *AnalyticsValidationRule) Validate(data interface{}) error {
	a, ok := data.(*models.AddressAnalytics)
	if !ok {
		return fmt.Errorf("数据类型不是分析结果")
	}

	inconsistent := func(msg string) error {
		return errors.NewAppError(errors.ErrorTypeValidation, errors.SeverityHigh,
			"ANALYTICS_INCONSISTENT", msg)
	}

	if a.TotalTransactions < 0 {
		return inconsistent("交易总数不能为负数")
	}
	if a.LastUpdated <= 0 {
		return inconsistent("更新时间必须为正数")
	}
	if a.ActiveDays != len(a.DailyActivity) {
		return inconsistent("活跃天数与日度记录数不一致")
	}

	dailyTx := 0
	for _, d := range a.DailyActivity {
		dailyTx += d.TransactionCount
	}
	if dailyTx != a.TotalTransactions {
		return inconsistent("日度交易数之和与交易总数不一致")
	}

	monthlyTx, monthlyDays := 0, 0
	for _, m := range a.MonthlyActivity {
		monthlyTx += m.TransactionCount
		monthlyDays += m.ActiveDays
	}
	if monthlyTx != a.TotalTransactions || monthlyDays != a.ActiveDays {
		return inconsistent("月度汇总与日度记录不一致")
	}

	if a.ActivityStreak.LongestStreak < a.ActivityStreak.CurrentStreak {
		return inconsistent("最长连续天数小于当前连续天数")
	}
	if !a.ActivityStreak.IsActive && a.ActivityStreak.CurrentStreak != 0 {
		return inconsistent("非活跃状态下当前连续天数必须为0")
	}

	return nil
}

// AddressValidationRule 地址验证规则
type AddressValidationRule struct{}

func NewAddressValidationRule() *AddressValidationRule {
	return &AddressValidationRule{}
}

func (r *AddressValidationRule) Name() string {
	return "address"
}

func (r *AddressValidationRule) Description() string {
	return "以太坊地址验证规则"
}

func (r *AddressValidationRule) Validate(data interface{}) error {
	addr, ok := data.(string)
	if !ok {
		return fmt.Errorf("数据类型不是字符串")
	}

	_, err := ValidateAddress(addr)
	return err
}

// HashValidationRule 哈希验证规则
type HashValidationRule struct{}

func NewHashValidationRule() *HashValidationRule {
	return &HashValidationRule{}
}

func (r *HashValidationRule) Name() string {
	return "hash"
}

func (r *HashValidationRule) Description() string {
	return "哈希值验证规则"
}

func (r *HashValidationRule) Validate(data interface{}) error {
	hash, ok := data.(string)
	if !ok {
		return fmt.Errorf("数据类型不是字符串")
	}

	if !isValidHash(hash) {
		return errors.NewAppError(errors.ErrorTypeValidation, errors.SeverityHigh,
			"INVALID_HASH_FORMAT", "哈希格式无效")
	}

	return nil
}

// GetValidationStats 获取验证统计信息
func (v *Validator) GetValidationStats() map[string]interface{} {
	return map[string]interface{}{
		"strict_mode":      v.strictMode,
		"registered_rules": len(v.rules),
		"error_stats":      v.errorHandler.GetStats(),
	}
}

// SetStrictMode 设置严格模式
func (v *Validator) SetStrictMode(strict bool) {
	v.strictMode = strict
	v.logger.Infof("验证器严格模式设置为: %t", strict)
}

// IsStrictMode 是否为严格模式
func (v *Validator) IsStrictMode() bool {
	return v.strictMode
}
