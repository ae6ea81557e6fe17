package server

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// DBInfo describes one database file.
type DBInfo struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	SizeMB float64 `json:"size_mb"`
}

// handleSystemStatus handles GET /api/system/status
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := s.getSystemStats()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := map[string]interface{}{
		"status":         "running",
		"uptime_seconds": int64(time.Since(s.startup).Seconds()),
		"cpu_percent":    cpuPercent,
		"memory_percent": memPercent,
		"process": map[string]interface{}{
			"alloc_mb":   m.Alloc / 1024 / 1024,
			"sys_mb":     m.Sys / 1024 / 1024,
			"num_gc":     m.NumGC,
			"goroutines": runtime.NumGoroutine(),
		},
		"backup_enabled": s.backup != nil,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleDatabaseStats handles GET /api/system/database/stats
func (s *Server) handleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	databases := make([]DBInfo, 0, len(s.databases))
	totalSizeMB := 0.0

	for _, db := range s.databases {
		info, err := os.Stat(db.Path())
		if err != nil {
			continue
		}
		sizeMB := float64(info.Size()) / 1024 / 1024
		totalSizeMB += sizeMB

		databases = append(databases, DBInfo{
			Name:   db.Name(),
			Path:   db.Path(),
			SizeMB: sizeMB,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"databases":     databases,
		"total_size_mb": totalSizeMB,
		"last_checked":  time.Now().Format(time.RFC3339),
	})
}

// handleTriggerBackup handles POST /api/system/backup
func (s *Server) handleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if s.backup == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Backups are not configured")
		return
	}

	if err := s.backup.CreateAndUploadBackup(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Manual backup failed")
		s.writeError(w, http.StatusInternalServerError, "Backup failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "backup completed"})
}

// getSystemStats returns CPU and RAM usage percentages. The CPU sample
// window is kept short so the status endpoint stays responsive.
func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
