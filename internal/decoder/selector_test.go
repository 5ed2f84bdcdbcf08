package decoder

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestMethodID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"transfer调用", "0xa9059cbb000000000000000000000000", "0xa9059cbb"},
		{"大写十六进制", "0xA9059CBB00", "0xa9059cbb"},
		{"无前缀", "095ea7b3", "0x095ea7b3"},
		{"空输入", "", ""},
		{"仅前缀", "0x", ""},
		{"长度不足", "0xa905", ""},
		{"非法字符", "0xzz059cbb", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MethodID(tt.input))
		})
	}
}

func TestHasCallData(t *testing.T) {
	assert.False(t, HasCallData(""))
	assert.False(t, HasCallData("0x"))
	assert.True(t, HasCallData("0x00"))
}

func TestSelectorDecoder_Decode(t *testing.T) {
	d := NewSelectorDecoder(logrus.New())

	id, name := d.Decode("0xa9059cbb0000", "", "")
	assert.Equal(t, "0xa9059cbb", id)
	assert.Equal(t, "transfer(address,uint256)", name)

	// 数据源给出的方法名优先
	id, name = d.Decode("0xa9059cbb0000", "0xa9059cbb", "transfer(address _to, uint256 _value)")
	assert.Equal(t, "0xa9059cbb", id)
	assert.Equal(t, "transfer(address _to, uint256 _value)", name)

	id, name = d.Decode("0xdeadbeef", "", "")
	assert.Equal(t, "0xdeadbeef", id)
	assert.Empty(t, name)

	id, name = d.Decode("0x", "", "")
	assert.Empty(t, id)
	assert.Empty(t, name)
}

func TestSelectorDecoder_Register(t *testing.T) {
	d := NewSelectorDecoder(logrus.New())
	before := d.Size()

	d.Register("0xDEADBEEF", "ping()")
	name, ok := d.Lookup("0xdeadbeef")
	assert.True(t, ok)
	assert.Equal(t, "ping()", name)
	assert.Equal(t, before+1, d.Size())

	// 注册不影响全局表
	_, ok = NewSelectorDecoder(logrus.New()).Lookup("0xdeadbeef")
	assert.False(t, ok)
}
