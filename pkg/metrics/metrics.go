// Package metrics exposes Prometheus counters for the file operations.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's Prometheus instruments.
type Collector struct {
	registry *prometheus.Registry

	Uploads         prometheus.Counter
	UploadBytes     prometheus.Counter
	QuotaRejections prometheus.Counter
	Renames         prometheus.Counter
	Deletes         prometheus.Counter
}

// NewCollector registers the service counters on a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storeit",
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		return c
	}

	return &Collector{
		registry:        registry,
		Uploads:         factory("uploads_total", "Completed file uploads."),
		UploadBytes:     factory("upload_bytes_total", "Bytes accepted across completed uploads."),
		QuotaRejections: factory("quota_rejections_total", "Uploads rejected for exceeding the owner quota."),
		Renames:         factory("renames_total", "Completed file renames."),
		Deletes:         factory("deletes_total", "Completed file deletions."),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (c *Collector) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
	return func(ctx *gin.Context) {
		h.ServeHTTP(ctx.Writer, ctx.Request)
	}
}
