package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/voxgate/voxgate/internal/model"
	"github.com/voxgate/voxgate/pkg/oai"
)

// modelStatusEntry is one element of GET /v0/models: the model id plus the
// live view of its health status.
type modelStatusEntry struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Status  *model.Status `json:"status"`
}

type modelStatusList struct {
	Object string             `json:"object"`
	Data   []modelStatusEntry `json:"data"`
}

// handleModels lists every configured model with its probe status,
// regardless of whether it is currently running.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models := s.registry.Models()
	out := modelStatusList{Object: "list", Data: make([]modelStatusEntry, 0, len(models))}
	for _, m := range models {
		out.Data = append(out.Data, modelStatusEntry{
			ID:      m.Record.ResolveName,
			Object:  "model",
			Created: s.created,
			Status:  m.Status,
		})
	}
	writeJSON(w, out)
}

// handleOAIModels lists the running models only, in the OpenAI list format
// clients use for discovery.
func (s *Server) handleOAIModels(w http.ResponseWriter, r *http.Request) {
	out := oai.ModelList{Object: "list", Data: []oai.ModelInfo{}}
	for _, m := range s.registry.Models() {
		if !m.Status.Running() {
			continue
		}
		out.Data = append(out.Data, oai.ModelInfo{
			ID:      m.Record.ResolveName,
			Object:  "model",
			Created: s.created,
			OwnedBy: "voxgate",
		})
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response body", "err", err)
	}
}
