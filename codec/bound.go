package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Bound 变量界的线上表示。
// 接受 JSON 数字，以及显式无穷的字符串 "inf" / "+inf" / "-inf" / "infinity" / "+infinity" / "-infinity" (不区分大小写)。
// 字段缺失或为 null 表示该侧无界，由外层的指针字段表达。
type Bound float64

// UnmarshalJSON 实现 json.Unmarshaler。
func (b *Bound) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch strings.ToLower(s) {
		case "inf", "+inf", "infinity", "+infinity":
			*b = Bound(math.Inf(1))
		case "-inf", "-infinity":
			*b = Bound(math.Inf(-1))
		default:
			return fmt.Errorf("codec: invalid bound %q", s)
		}
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("codec: invalid bound %s: %w", data, err)
	}
	*b = Bound(f)
	return nil
}

// MarshalJSON 有限值编码为数字，无穷编码为 "inf" / "-inf"。
func (b Bound) MarshalJSON() ([]byte, error) {
	f := float64(b)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-inf"`), nil
	case math.IsNaN(f):
		return nil, fmt.Errorf("codec: NaN bound")
	}
	return json.Marshal(f)
}

// Index 变量下标：非负十进制整数，拒绝字符串、小数与指数形式。
type Index uint32

// UnmarshalJSON 实现 json.Unmarshaler。
func (i *Index) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	v, err := strconv.ParseUint(s, 10, 31)
	if err != nil {
		return fmt.Errorf("codec: invalid variable index %s", s)
	}
	*i = Index(v)
	return nil
}
