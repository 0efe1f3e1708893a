package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterBuildInfo 注册 lpsolver_build_info，重复调用时保留第一次的版本。
func (m *Metrics) RegisterBuildInfo(serviceName, version string) {
	if m == nil || m.BuildInfo != nil {
		return
	}

	m.BuildInfo = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lpsolver_build_info",
		Help: "Build information of the running solver binary",
	}, []string{"service", "version", "go_version"})

	m.BuildInfo.WithLabelValues(orUnknown(serviceName), orUnknown(version), runtime.Version()).Set(1)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
