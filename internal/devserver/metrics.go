package devserver

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests *prometheus.CounterVec
	logins   *prometheus.CounterVec
	uploads  prometheus.Counter
	wsConns  prometheus.Gauge
}

func newMetrics(reg *prometheus.Registry) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "devserver_http_requests_total",
			Help: "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "devserver_login_attempts_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		uploads: factory.NewCounter(prometheus.CounterOpts{
			Name: "devserver_object_uploads_total",
			Help: "Accepted object uploads.",
		}),
		wsConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "devserver_realtime_connections",
			Help: "Open realtime websocket connections.",
		}),
	}
}

// instrument counts every request once the handler chain finishes.
func (m *metrics) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		m.requests.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
