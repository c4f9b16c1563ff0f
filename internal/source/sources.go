// Package source supplies in-process implementations of the aggregator's
// upstream providers. External systems can substitute their own.
package source

import (
	"context"
	"runtime"

	"github.com/crazybass81/DOT-sub003/internal/service/health"
	"github.com/crazybass81/DOT-sub003/internal/ws"
)

// HubConnections reports live subscriber counts from the streaming hub.
type HubConnections struct {
	hub *ws.Hub
	max int
}

// NewHubConnections wraps a hub as a connection source with the given
// capacity ceiling.
func NewHubConnections(hub *ws.Hub, maxConnections int) *HubConnections {
	return &HubConnections{hub: hub, max: maxConnections}
}

var _ health.ConnectionSource = (*HubConnections)(nil)

// ConnectionStats counts hub subscribers per topic. Hub subscribers are all
// authenticated upstream, so the authenticated count tracks the total.
func (s *HubConnections) ConnectionStats(_ context.Context) (health.ConnectionStats, error) {
	counts := s.hub.SubscriberCounts()
	total := 0
	for _, n := range counts {
		total += n
	}
	return health.ConnectionStats{
		TotalConnections:         total,
		AuthenticatedConnections: total,
		MaxConnections:           s.max,
		ByScope:                  counts,
	}, nil
}

// RuntimeResources samples the Go runtime for process resource statistics.
type RuntimeResources struct{}

var _ health.ResourceSource = (*RuntimeResources)(nil)

// ResourceStats reads memory and goroutine figures from the runtime. CPU is
// not observable here and reads as zero; an external provider can replace
// this source when host metrics are available.
func (RuntimeResources) ResourceStats(_ context.Context) (health.ResourceStats, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return health.ResourceStats{
		MemoryUsedBytes:  mem.HeapAlloc,
		MemoryTotalBytes: mem.Sys,
		Goroutines:       runtime.NumGoroutine(),
	}, nil
}
