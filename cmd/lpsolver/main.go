// Command lpsolver 求解线性规划问题，或作为 HTTP/gRPC 求解服务运行。
//
//	lpsolver solve problem.json        # 本地求解，输出 {type, value} 结果
//	lpsolver solve --remote :9090 -    # 通过 gRPC 服务求解标准输入中的问题
//	lpsolver serve --config lpsolver.toml
//	lpsolver health --grpc :9090
package main

import (
	"context"
	"fmt"
	"os"
)

// version 由构建时 -ldflags "-X main.version=..." 注入。
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
