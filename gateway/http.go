package gateway

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"weavemint.dev/weavemint/asset"
	"weavemint.dev/weavemint/cidutil"
	"weavemint.dev/weavemint/logging"
	"weavemint.dev/weavemint/storage"
	"weavemint.dev/weavemint/weave"
)

// NewHTTPHandler serves stored payloads at GET /{id} so content references
// resolve in a browser. Raster image Content-Type tags are honored; anything
// else is served as asset.DefaultMediaType.
func NewHTTPHandler(cas storage.CAS, logger *slog.Logger) http.Handler {
	logger = logging.OrDiscard(logger)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{id}", func(w http.ResponseWriter, r *http.Request) {
		raw := r.PathValue("id")
		id, err := cidutil.Parse(raw)
		if err != nil {
			http.Error(w, storage.ErrInvalidCID.Error(), http.StatusBadRequest)
			return
		}
		b, err := cas.Get(id)
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			logger.Error("reading transaction", "id", raw, "error", err)
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		tx, err := weave.DecodeEnvelope(b)
		if err != nil {
			logger.Error("decoding stored envelope", "id", raw, "error", err)
			http.Error(w, "corrupt transaction", http.StatusInternalServerError)
			return
		}
		ct, _ := tx.Tag(weave.TagContentType)
		w.Header().Set("Content-Type", servedMediaType(ct))
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Length", strconv.Itoa(len(tx.Data)))
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		_, _ = w.Write(tx.Data)
	})
	return mux
}

// servedMediaType limits payloads to types a browser renders inertly. SVG is
// an image type that can carry script.
func servedMediaType(declared string) string {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil || !strings.HasPrefix(mt, "image/") || mt == "image/svg+xml" {
		return asset.DefaultMediaType
	}
	return mt
}
