package api

import "net/http"

// NewRouter builds the compliance API handler.
func NewRouter(h *ComplianceHandlers) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /api/compliance", EvaluateMiddleware(h.ctrl)(http.HandlerFunc(h.HandleEvaluate)))
	mux.HandleFunc("GET /api/compliance/status", h.HandleStatus)
	mux.HandleFunc("GET /api/compliance/notices", h.HandleListNotices)
	mux.HandleFunc("POST /api/compliance/notices/dismiss", h.HandleDismissNotice)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return ErrorHandler(mux)
}
