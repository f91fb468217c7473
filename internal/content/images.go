package content

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/markeidelman/clinicweb/httputil"
	"github.com/markeidelman/clinicweb/internal/sanity"
)

// ImageResponse carries everything an <img> tag needs.
type ImageResponse struct {
	URL        string                 `json:"url"`
	SrcSet     string                 `json:"srcset"`
	Responsive []sanity.ResponsiveURL `json:"responsive"`
}

// ImageRoutes mounts GET /{ref}?w=&h=&q= which resolves an image asset
// reference into CDN URLs. w is required for a sized url; without it the
// untransformed asset URL is returned.
func ImageRoutes(b sanity.ImageURLs) chi.Router {
	r := chi.NewRouter()
	r.Get("/{ref}", func(w http.ResponseWriter, r *http.Request) {
		ref := chi.URLParam(r, "ref")
		q := r.URL.Query()
		width, werr := optionalInt(q.Get("w"))
		height, herr := optionalInt(q.Get("h"))
		quality, qerr := optionalInt(q.Get("q"))
		if werr != nil || herr != nil || qerr != nil || quality > 100 {
			httputil.JSONErrorSimple(w, http.StatusBadRequest, "Invalid image parameters")
			return
		}

		var (
			resp ImageResponse
			err  error
		)
		if width > 0 {
			resp.URL, err = b.OptimizedURL(ref, width, height, quality)
		} else {
			resp.URL, err = b.ImageURL(ref)
		}
		if err == nil {
			resp.Responsive, err = b.ResponsiveURLs(ref, nil, quality)
		}
		if err == nil {
			resp.SrcSet, err = b.SrcSet(ref, nil, quality)
		}
		if errors.Is(err, sanity.ErrInvalidImageRef) {
			httputil.JSONErrorSimple(w, http.StatusNotFound, "Unknown image")
			return
		}
		if err != nil {
			httputil.JSONErrorSimple(w, http.StatusInternalServerError, "Image URL failed")
			return
		}

		w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
		httputil.WriteJSON(w, http.StatusOK, resp)
	})
	return r
}

// optionalInt parses a non-negative int; "" is 0.
func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 10000 {
		return 0, errors.New("out of range")
	}
	return n, nil
}
