package cmd

import "net/http"

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.Handle("/submit", onlyMethod(http.MethodPost, s.handleSubmit))
	mux.Handle("/run", onlyMethod(http.MethodPost, s.handlerRun))
	mux.Handle("/metrics", onlyMethod(http.MethodGet, s.handleMetrics))
}

// onlyMethod rejects every other method with 405. The module's go
// directive keeps ServeMux on its pre-1.22 matching, which has no method
// patterns, so the method check happens here.
func onlyMethod(method string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	})
}
