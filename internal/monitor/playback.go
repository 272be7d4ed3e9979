package monitor

import (
	"net/http"

	"github.com/banshee-data/liframe/internal/httputil"
)

type playbackResponse struct {
	State     string `json:"state"`
	Index     int    `json:"index"`
	MaxIndex  *int   `json:"max_index"` // null for live-only playback
	Processed int    `json:"processed"`
}

func (s *Server) writeStatus(w http.ResponseWriter) {
	st := s.ctrl.Status()
	resp := playbackResponse{
		State:     st.State.String(),
		Index:     st.Index,
		Processed: st.Processed,
	}
	if !st.Unbounded {
		resp.MaxIndex = &st.MaxIndex
	}
	_ = httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) controller(w http.ResponseWriter) bool {
	if s.ctrl == nil {
		_ = httputil.WriteError(w, http.StatusServiceUnavailable, "no playback controller attached")
		return false
	}
	return true
}

// handlePlayback reports the playback position. Method: GET.
func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) || !s.controller(w) {
		return
	}
	s.writeStatus(w)
}

// handleForward steps one frame forward and pauses. Method: POST.
func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodPost) || !s.controller(w) {
		return
	}
	s.ctrl.StepForward()
	s.writeStatus(w)
}

// handleBackward steps one frame back and pauses. Method: POST.
func (s *Server) handleBackward(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodPost) || !s.controller(w) {
		return
	}
	s.ctrl.StepBackward()
	s.writeStatus(w)
}

// handleToggle flips between playing and paused. Method: POST.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodPost) || !s.controller(w) {
		return
	}
	s.ctrl.TogglePlay()
	s.writeStatus(w)
}

// handleFrame returns the latest snapshot summary. Method: GET.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	snap := s.Latest()
	if snap == nil {
		_ = httputil.WriteError(w, http.StatusNotFound, "no frame processed yet")
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, snap)
}
