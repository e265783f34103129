package http

import (
	"net/http"
	"strings"

	"github.com/slimsayari/woocommerce-typesense-search/pkg/httputil"
)

// ContentTypeJSON rejects write requests that do not declare a JSON body.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "application/json") {
			httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:    "UNSUPPORTED_MEDIA_TYPE",
					Message: "Content-Type must be application/json",
				},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
