package web

import (
	"encoding/json"
	"net/http"

	"github.com/ixoworld/datavault/internal/query"
	"github.com/ixoworld/datavault/internal/vault"
	"github.com/ixoworld/datavault/internal/vaulterr"
	"github.com/ixoworld/datavault/internal/vaultlog"
)

// Handlers contains HTTP route handlers for the RetrievalAPI (spec.md §4.8).
type Handlers struct {
	store  *vault.Store
	engine *query.Engine
}

// NewHandlers constructs the handler set.
func NewHandlers(store *vault.Store, engine *query.Engine) *Handlers {
	return &Handlers{store: store, engine: engine}
}

// retrieveResponse is the success body of GET /data-vault/{handleId}, per
// spec.md §6.
type retrieveResponse struct {
	Success   bool                   `json:"success"`
	HandleID  string                 `json:"handleId"`
	RowCount  int                    `json:"rowCount"`
	Data      []vault.Row            `json:"data"`
	Metadata  vault.MetadataEnvelope `json:"metadata"`
}

// HandleRetrieve handles GET /data-vault/{handleId}. Requires headers
// x-user-did and x-data-token.
func (h *Handlers) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	handleID := r.PathValue("handleId")

	principal := r.Header.Get("x-user-did")
	token := r.Header.Get("x-data-token")
	if principal == "" || token == "" {
		vaultlog.Audit("retrieve-unauthorized", handleID, principal)
		writeError(w, http.StatusUnauthorized, "missing x-user-did or x-data-token header")
		return
	}

	rows, metadata, ok := h.store.GetWithMetadata(handleID, principal, token)
	if !ok {
		vaultlog.Audit("retrieve-not-found", handleID, principal)
		writeVaultErr(w, vaulterr.NewDataNotFound(handleID, metadata.SourceTool))
		return
	}

	vaultlog.Audit("retrieve-ok", handleID, principal)
	writeJSON(w, http.StatusOK, retrieveResponse{
		Success:  true,
		HandleID: handleID,
		RowCount: len(rows),
		Data:     rows,
		Metadata: metadata,
	})
}

// HandleHealthz is the supplemented liveness endpoint (SPEC_FULL.md §4).
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeVaultErr(w http.ResponseWriter, err *vaulterr.VaultError) {
	writeJSON(w, err.Status, map[string]any{
		"success": false,
		"error":   err.Message,
		"code":    err.Code,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
