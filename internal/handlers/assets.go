package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gorilla/mux"
	"github.com/snappy-loop/storyteller/internal/storage"
)

// audioTypes covers extensions missing from minimal mime tables.
var audioTypes = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
}

// GetAsset handles GET /assets/{key}. It serves stored objects for backends
// without native public URLs.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if !strings.HasPrefix(key, "stories/") || path.Clean(key) != key {
		writeJSONError(w, http.StatusBadRequest, "invalid asset key")
		return
	}

	data, err := h.assets.Get(r.Context(), key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		writeJSONError(w, http.StatusNotFound, "asset not found")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	contentType := audioTypes[path.Ext(key)]
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(key))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
