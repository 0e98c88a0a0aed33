// Package api exposes the compliance controller over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/rcourtman/pulse-compliance/internal/notifications"
	"github.com/rcourtman/pulse-compliance/pkg/compliance"
)

// ComplianceHandlers serves the /api/compliance endpoints.
type ComplianceHandlers struct {
	ctrl  *compliance.Controller
	board *notifications.NoticeBoard
}

// NewComplianceHandlers creates the handlers. board may be nil, in which case the
// notices endpoint returns an empty list.
func NewComplianceHandlers(ctrl *compliance.Controller, board *notifications.NoticeBoard) *ComplianceHandlers {
	return &ComplianceHandlers{ctrl: ctrl, board: board}
}

// EvaluateResponse is returned by GET /api/compliance.
type EvaluateResponse struct {
	compliance.Result
	Behavior compliance.LevelBehavior `json:"behavior"`
}

// HandleEvaluate handles GET /api/compliance.
// Runs one evaluation, dispatching any notifications it owes.
func (h *ComplianceHandlers) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	result, ok := ResultFromContext(r.Context())
	if !ok {
		result = h.ctrl.Evaluate(r.Context())
	}
	writeJSON(w, http.StatusOK, EvaluateResponse{Result: result, Behavior: result.Behavior()})
}

// StatusResponse is returned by GET /api/compliance/status.
type StatusResponse struct {
	compliance.Snapshot
	Behavior         compliance.LevelBehavior `json:"behavior"`
	NoticeSuppressed bool                     `json:"notice_suppressed"`
}

// HandleStatus handles GET /api/compliance/status.
// Reports persisted state without calling the verifier.
func (h *ComplianceHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.ctrl.Snapshot(r.Context())
	writeJSON(w, http.StatusOK, StatusResponse{
		Snapshot:         snap,
		Behavior:         compliance.Behavior(snap.Level),
		NoticeSuppressed: h.ctrl.NoticeSuppressed(r.Context()),
	})
}

type dismissResponse struct {
	SuppressedUntil time.Time `json:"suppressed_until"`
}

// HandleDismissNotice handles POST /api/compliance/notices/dismiss.
func (h *ComplianceHandlers) HandleDismissNotice(w http.ResponseWriter, r *http.Request) {
	until, err := h.ctrl.DismissNotice(r.Context())
	if err != nil {
		writeErrorResponse(w, r, http.StatusInternalServerError, "dismiss_failed",
			sanitizeErrorForClient(err, "Failed to dismiss compliance notice"))
		return
	}
	if h.board != nil {
		if err := h.board.Clear(r.Context()); err != nil {
			sanitizeErrorForClient(err, "Failed to clear compliance notices")
		}
	}
	writeJSON(w, http.StatusOK, dismissResponse{SuppressedUntil: until})
}

type noticesResponse struct {
	Notices []notifications.Notice `json:"notices"`
}

// HandleListNotices handles GET /api/compliance/notices.
func (h *ComplianceHandlers) HandleListNotices(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		writeJSON(w, http.StatusOK, noticesResponse{Notices: []notifications.Notice{}})
		return
	}
	notices, err := h.board.List(r.Context())
	if err != nil {
		writeErrorResponse(w, r, http.StatusInternalServerError, "notices_unavailable",
			sanitizeErrorForClient(err, "Failed to load compliance notices"))
		return
	}
	writeJSON(w, http.StatusOK, noticesResponse{Notices: notices})
}
