package database

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dbConnectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "db_connections",
		Help: "Database connection pool state.",
	}, []string{"state"})
)

// StartMetricsCollector 周期性采集连接池指标
// 返回停止函数
func StartMetricsCollector(interval time.Duration) func() {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				collectPoolStats()
			}
		}
	}()

	return func() { close(done) }
}

func collectPoolStats() {
	if DB == nil {
		return
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return
	}
	stats := sqlDB.Stats()
	dbConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
	dbConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
	dbConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
}
