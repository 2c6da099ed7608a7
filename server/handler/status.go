package handler

import (
	"encoding/json"
	"net/http"
)

type StatusResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Port    int    `json:"port"`
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		Status:  "WebSocket server running",
		Clients: h.hub.Count(),
		Port:    h.port,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
