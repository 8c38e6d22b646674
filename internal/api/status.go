package api

import (
	"net/http"

	"github.com/vidmetrics/vidmetrics/internal/config"
)

// statusResponse summarises the running configuration. Credentials and
// connection strings are never included.
type statusResponse struct {
	Service              string `json:"service"`
	Profile              string `json:"profile"`
	Engine               string `json:"engine"`
	ParquetPrefix        string `json:"parquet_prefix,omitempty"`
	CompletionProvider   string `json:"completion_provider"`
	CompletionModel      string `json:"completion_model,omitempty"`
	CompletionTimeout    string `json:"completion_timeout"`
	RejectMultiStatement bool   `json:"reject_multi_statement"`
	AuthRequired         bool   `json:"auth_required"`
}

func handleStatus(cfg config.Config) http.HandlerFunc {
	response := statusResponse{
		Service:              cfg.Service.Name,
		Profile:              string(cfg.Profile),
		Engine:               cfg.Engine.Kind,
		CompletionProvider:   cfg.Completion.Provider,
		CompletionModel:      cfg.Completion.Model,
		CompletionTimeout:    cfg.Completion.Timeout.String(),
		RejectMultiStatement: cfg.SQL.RejectMultiStatement,
		AuthRequired:         cfg.Auth.Required,
	}
	if cfg.Engine.Kind == config.EngineDuckDB {
		response.ParquetPrefix = cfg.Engine.ParquetPrefix
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, response)
	}
}
