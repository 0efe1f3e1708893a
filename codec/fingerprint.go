package codec

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"

	"github.com/wyfcoding/lpsolver/lp"
)

// Fingerprint 返回问题规范编码的 BLAKE2b-256 摘要 (十六进制)。
// 语义相同但 JSON 写法不同的请求 (字段顺序、空白、"inf" 与缺省界) 得到相同的指纹。
func Fingerprint(p *lp.Problem) (string, error) {
	data, err := json.Marshal(Encode(p))
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
