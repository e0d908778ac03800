package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/marketfacts/internal/clientdata"
	"github.com/aristath/marketfacts/internal/scheduler"
)

// SystemHandlers serves operational status
type SystemHandlers struct {
	cache      *clientdata.Cache
	dispatched func() int64
	jobs       func() []scheduler.JobStatus
	log        zerolog.Logger
}

// StatusResponse is the body of GET /api/system/status
type StatusResponse struct {
	Cache         clientdata.Stats      `json:"cache"`
	LLMDispatched int64                 `json:"llm_dispatched"`
	Jobs          []scheduler.JobStatus `json:"jobs"`
	CPUPercent    float64               `json:"cpu_percent"`
	MemPercent    float64               `json:"mem_percent"`
	Goroutines    int                   `json:"goroutines"`
}

// NewSystemHandlers creates system handlers. dispatched and jobs may be nil.
func NewSystemHandlers(cache *clientdata.Cache, dispatched func() int64, jobs func() []scheduler.JobStatus, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		cache:      cache,
		dispatched: dispatched,
		jobs:       jobs,
		log:        log,
	}
}

// HandleStatus returns cache counters, LLM queue activity, job runs and host load
// GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Cache:      h.cache.Stats(),
		Jobs:       []scheduler.JobStatus{},
		Goroutines: runtime.NumGoroutine(),
	}
	if h.dispatched != nil {
		resp.LLMDispatched = h.dispatched()
	}
	if h.jobs != nil {
		resp.Jobs = h.jobs()
	}
	resp.CPUPercent, resp.MemPercent = h.getSystemStats()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode status response")
	}
}

// getSystemStats samples CPU over 100ms so the endpoint stays responsive
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
