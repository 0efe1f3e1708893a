package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName 是求解服务使用的 gRPC content-subtype，消息体即 JSON 原文。
const CodecName = "lpsolver-json"

func init() {
	encoding.RegisterCodec(rawCodec{})
}

// rawCodec 原样传递 JSON 字节，请求与结果沿用 HTTP 接口的线上格式。
type rawCodec struct{}

func (rawCodec) Name() string { return CodecName }

func (rawCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *json.RawMessage:
		if m == nil {
			return nil, nil
		}
		return *m, nil
	case json.RawMessage:
		return m, nil
	case []byte:
		return m, nil
	default:
		return nil, fmt.Errorf("rpc: cannot marshal %T", v)
	}
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(*json.RawMessage)
	if !ok {
		return fmt.Errorf("rpc: cannot unmarshal into %T", v)
	}
	*m = append((*m)[:0], data...)
	return nil
}
