package decoder

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

// selectorLength 方法选择器字节数
const selectorLength = 4

// 常见方法签名，覆盖 ERC20/ERC721 与主流 DEX 路由
var commonMethods = map[string]string{
	"0xa9059cbb": "transfer(address,uint256)",
	"0x095ea7b3": "approve(address,uint256)",
	"0x23b872dd": "transferFrom(address,address,uint256)",
	"0x70a08231": "balanceOf(address)",
	"0xdd62ed3e": "allowance(address,address)",
	"0x40c10f19": "mint(address,uint256)",
	"0x42966c68": "burn(uint256)",
	"0xf2fde38b": "transferOwnership(address)",
	"0x42842e0e": "safeTransferFrom(address,address,uint256)",
	"0xa22cb465": "setApprovalForAll(address,bool)",
	"0xd0e30db0": "deposit()",
	"0x2e1a7d4d": "withdraw(uint256)",
	"0x7ff36ab5": "swapExactETHForTokens(uint256,address[],address,uint256)",
	"0x18cbafe5": "swapExactTokensForETH(uint256,uint256,address[],address,uint256)",
	"0x38ed1739": "swapExactTokensForTokens(uint256,uint256,address[],address,uint256)",
	"0x414bf389": "exactInputSingle((address,address,uint24,address,uint256,uint256,uint256,uint160))",
	"0xc04b8d59": "exactInput((bytes,address,uint256,uint256,uint256))",
	"0x3593564c": "execute(bytes,bytes[],uint256)",
	"0xac9650d8": "multicall(bytes[])",
	"0x5ae401dc": "multicall(uint256,bytes[])",
	"0xe8e33700": "addLiquidity(address,address,uint256,uint256,uint256,uint256,address,uint256)",
	"0xf305d719": "addLiquidityETH(address,uint256,uint256,uint256,address,uint256)",
	"0xbaa2abde": "removeLiquidity(address,address,uint256,uint256,uint256,address,uint256)",
	"0x617ba037": "supply(address,uint256,address,uint16)",
	"0xa415bcad": "borrow(address,uint256,uint256,uint16,address)",
	"0x573ade81": "repay(address,uint256,uint256,address)",
	"0x1249c58b": "mint()",
	"0xa0712d68": "mint(uint256)",
}

// SelectorDecoder 方法选择器解码器，只使用本地签名表，不访问网络
type SelectorDecoder struct {
	logger *logrus.Logger
	mu     sync.RWMutex
	table  map[string]string
}

// NewSelectorDecoder 创建选择器解码器
func NewSelectorDecoder(logger *logrus.Logger) *SelectorDecoder {
	table := make(map[string]string, len(commonMethods))
	for k, v := range commonMethods {
		table[k] = v
	}
	return &SelectorDecoder{
		logger: logger,
		table:  table,
	}
}

// MethodID 提取调用数据前4字节，返回带 0x 前缀的小写选择器。
// 无调用数据或长度不足时返回空串。
func MethodID(input string) string {
	data, err := hexutil.Decode(normalizeHex(input))
	if err != nil || len(data) < selectorLength {
		return ""
	}
	return hexutil.Encode(data[:selectorLength])
}

// HasCallData 判断是否携带调用数据
func HasCallData(input string) bool {
	input = strings.TrimSpace(input)
	return input != "" && input != "0x" && input != "0X"
}

// Lookup 查找选择器对应的方法签名
func (d *SelectorDecoder) Lookup(selector string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.table[strings.ToLower(selector)]
	return name, ok
}

// Register 注册自定义方法签名
func (d *SelectorDecoder) Register(selector, signature string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.table[strings.ToLower(selector)] = signature
	if d.logger != nil {
		d.logger.Debugf("已注册方法签名: %s => %s", selector, signature)
	}
}

// Decode 返回 (methodId, functionName)。
// providerName 非空时优先使用数据源给出的方法名。
func (d *SelectorDecoder) Decode(input, methodID, providerName string) (string, string) {
	if methodID == "" || methodID == "0x" {
		methodID = MethodID(input)
	}
	methodID = strings.ToLower(methodID)
	if methodID == "" {
		return "", providerName
	}
	if providerName != "" {
		return methodID, providerName
	}
	if name, ok := d.Lookup(methodID); ok {
		return methodID, name
	}
	return methodID, ""
}

// Size 签名表大小
func (d *SelectorDecoder) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.table)
}

// normalizeHex hexutil 要求偶数长度并带 0x 前缀
func normalizeHex(input string) string {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "0x") && !strings.HasPrefix(input, "0X") {
		input = "0x" + input
	}
	input = "0x" + input[2:]
	if len(input)%2 == 1 {
		input = input[:len(input)-1]
	}
	return input
}
