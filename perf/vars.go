package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	RecomputeLatency = metric.NewHistogram("1m1s")
	DispatchLatency  = metric.NewHistogram("1m1s")
	Recomputes       = metric.NewCounter("10s1s")
	RouteChanges     = metric.NewCounter("10s1s")
	UpdatesSent      = metric.NewCounter("10s1s")
	UpdatesDelivered = metric.NewCounter("10s1s")
	UpdatesIgnored   = metric.NewCounter("10s1s")
	UpdateBytes      = metric.NewCounter("10s1s")
	MailboxDepth     = metric.NewGauge("10s1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("dvsim:RecomputeLatency (µs)", RecomputeLatency)
	expvar.Publish("dvsim:DispatchLatency (µs)", DispatchLatency)
	expvar.Publish("dvsim:Recomputes", Recomputes)
	expvar.Publish("dvsim:RouteChanges", RouteChanges)
	expvar.Publish("dvsim:UpdatesSent", UpdatesSent)
	expvar.Publish("dvsim:UpdatesDelivered", UpdatesDelivered)
	expvar.Publish("dvsim:UpdatesIgnored", UpdatesIgnored)
	expvar.Publish("dvsim:UpdateBytes", UpdateBytes)
	expvar.Publish("dvsim:MailboxDepth", MailboxDepth)
}
