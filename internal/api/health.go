package api

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleHealth reports liveness plus coarse host stats. CPU and memory
// figures are best effort: a probe failure leaves the field at zero
// rather than failing the endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	var cpuPercent float64
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuPercent = pcts[0]
	}
	var memUsedPercent float64
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsedPercent = vm.UsedPercent
	}

	WriteSuccess(w, map[string]interface{}{
		"status":         "ok",
		"uptimeSeconds":  int64(time.Since(s.startTime).Seconds()),
		"lifecycle":      s.session.Lifecycle(),
		"polling":        s.session.Polling(),
		"wsClients":      s.relay.ClientCount(),
		"cpuPercent":     cpuPercent,
		"memUsedPercent": memUsedPercent,
	})
}
