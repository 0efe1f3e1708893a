package server

import (
	"github.com/gin-gonic/gin"
)

// NewDefaultGinEngine 创建一个新的 Gin 引擎实例。
// 引擎不带默认中间件，由调用方决定中间件顺序与集合。
// trustedProxies 为空时不信任任何代理，ClientIP 取连接对端地址。
func NewDefaultGinEngine(trustedProxies []string, middlewares ...gin.HandlerFunc) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(trustedProxies); err != nil {
		return nil, err
	}
	engine.Use(middlewares...)

	return engine, nil
}
