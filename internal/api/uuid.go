package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// urlUUID parses the named chi URL parameter as a UUID. On failure it writes
// a 400 and returns false; callers should return immediately.
func urlUUID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid "+key)
		return uuid.UUID{}, false
	}
	return id, true
}
