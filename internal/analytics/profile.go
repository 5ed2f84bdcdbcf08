package analytics

import (
	"math/big"

	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/params"
)

// 画像标识
const (
	ProfileWhaleTrader      = "whale_trader"
	ProfileTradingBot       = "trading_bot"
	ProfileDefiPowerUser    = "defi_power_user"
	ProfileActiveTrader     = "active_trader"
	ProfileNFTCollector     = "nft_collector"
	ProfileContractDeployer = "contract_deployer"
	ProfileRegularUser      = "regular_user"
	ProfileNewUser          = "new_user"
	ProfileDefault          = "default"
)

var profiles = map[string]models.Profile{
	ProfileWhaleTrader:      {Key: ProfileWhaleTrader, Name: "Whale Trader", Icon: "🐋"},
	ProfileTradingBot:       {Key: ProfileTradingBot, Name: "Trading Bot", Icon: "🤖"},
	ProfileDefiPowerUser:    {Key: ProfileDefiPowerUser, Name: "DeFi Power User", Icon: "🚀"},
	ProfileActiveTrader:     {Key: ProfileActiveTrader, Name: "Active Trader", Icon: "📈"},
	ProfileNFTCollector:     {Key: ProfileNFTCollector, Name: "NFT Collector", Icon: "🎨"},
	ProfileContractDeployer: {Key: ProfileContractDeployer, Name: "Contract Deployer", Icon: "⚙️"},
	ProfileRegularUser:      {Key: ProfileRegularUser, Name: "Regular User", Icon: "👤"},
	ProfileNewUser:          {Key: ProfileNewUser, Name: "New User", Icon: "🌱"},
	ProfileDefault:          {Key: ProfileDefault, Name: "Base User", Icon: "📊"},
}

// ProfileThresholds 画像判定阈值
type ProfileThresholds struct {
	WhaleMinEth            int64
	WhaleMinDailyTxs       float64
	BotMinDailyTxs         float64
	BotMinContractRatio    float64
	DefiMinContractRatio   float64
	DefiMinTransactions    int
	ActiveMinTransactions  int
	ActiveMinActiveDays    int
	NFTMinContractRatio    float64
	NFTMaxEth              int64
	DeployerMinRatio       float64
	DeployerMaxTxs         int
	RegularMinTransactions int
	NewUserMaxTransactions int
}

// DefaultProfileThresholds 默认阈值
var DefaultProfileThresholds = ProfileThresholds{
	WhaleMinEth:            100,
	WhaleMinDailyTxs:       10,
	BotMinDailyTxs:         20,
	BotMinContractRatio:    0.9,
	DefiMinContractRatio:   0.8,
	DefiMinTransactions:    100,
	ActiveMinTransactions:  200,
	ActiveMinActiveDays:    30,
	NFTMinContractRatio:    0.6,
	NFTMaxEth:              10,
	DeployerMinRatio:       0.5,
	DeployerMaxTxs:         50,
	RegularMinTransactions: 50,
	NewUserMaxTransactions: 10,
}

// ProfileInput 画像判定所需的指标
type ProfileInput struct {
	TotalTransactions    int
	ContractInteractions int
	ActiveDays           int
	Balance              *big.Int
}

// AvgDailyTxs 活跃日均交易数
func (in ProfileInput) AvgDailyTxs() float64 {
	days := in.ActiveDays
	if days < 1 {
		days = 1
	}
	return float64(in.TotalTransactions) / float64(days)
}

// ContractRatio 合约交互占比
func (in ProfileInput) ContractRatio() float64 {
	total := in.TotalTransactions
	if total < 1 {
		total = 1
	}
	return float64(in.ContractInteractions) / float64(total)
}

// ClassifyProfile 按固定顺序匹配第一个满足条件的画像
func ClassifyProfile(in ProfileInput, th ProfileThresholds) models.Profile {
	balance := in.Balance
	if balance == nil {
		balance = new(big.Int)
	}
	daily := in.AvgDailyTxs()
	ratio := in.ContractRatio()
	txs := in.TotalTransactions

	switch {
	case balance.Cmp(ether(th.WhaleMinEth)) >= 0 && daily >= th.WhaleMinDailyTxs:
		return profiles[ProfileWhaleTrader]
	case daily >= th.BotMinDailyTxs && ratio >= th.BotMinContractRatio:
		return profiles[ProfileTradingBot]
	case ratio >= th.DefiMinContractRatio && txs >= th.DefiMinTransactions:
		return profiles[ProfileDefiPowerUser]
	case txs >= th.ActiveMinTransactions && in.ActiveDays >= th.ActiveMinActiveDays:
		return profiles[ProfileActiveTrader]
	case ratio >= th.NFTMinContractRatio && balance.Cmp(ether(th.NFTMaxEth)) <= 0:
		return profiles[ProfileNFTCollector]
	case ratio >= th.DeployerMinRatio && txs <= th.DeployerMaxTxs:
		return profiles[ProfileContractDeployer]
	case txs >= th.RegularMinTransactions:
		return profiles[ProfileRegularUser]
	case txs <= th.NewUserMaxTransactions:
		return profiles[ProfileNewUser]
	default:
		return profiles[ProfileDefault]
	}
}

// LookupProfile 按标识查找画像
func LookupProfile(key string) (models.Profile, bool) {
	p, ok := profiles[key]
	return p, ok
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(params.Ether))
}
