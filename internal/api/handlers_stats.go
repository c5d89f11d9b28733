package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleConvertStats(w http.ResponseWriter, r *http.Request) {
	conv := s.orchestrator.Converter()
	if conv == nil {
		jsonError(w, "convert stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"stats":       conv.Stats().Snapshot(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
