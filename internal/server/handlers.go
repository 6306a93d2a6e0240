package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ligun0805/baseminer/internal/actions"
	"github.com/ligun0805/baseminer/internal/app"
	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/notify"
	"github.com/ligun0805/baseminer/internal/referral"
	"github.com/ligun0805/baseminer/internal/wallet"
)

const maxBody = 1 << 16

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps action errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, actions.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, actions.ErrNotConnected), errors.Is(err, actions.ErrNotSponsorable):
		return http.StatusPreconditionFailed
	case errors.Is(err, actions.ErrInFlight):
		return http.StatusConflict
	case errors.Is(err, app.ErrCooldown):
		return http.StatusTooEarly
	case errors.Is(err, wallet.ErrNoProvider):
		return http.StatusServiceUnavailable
	}
	if code, ok := wallet.ErrorCode(err); ok && code == wallet.CodeUserRejected {
		return http.StatusForbidden
	}
	return http.StatusBadGateway
}

func (s *Server) writeActionError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: err.Error(), Message: wallet.Describe(err)})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.backend.CaptureReferral(r.URL.Query())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, s.backend.View()); err != nil {
		s.log.Warn("render page", logging.Err(err))
	}
}

func (s *Server) handleRef(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, referral.RedirectTarget(r.PathValue("address")), http.StatusFound)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.View())
}

type buyRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	out, err := s.backend.Buy(r.Context(), req.Amount)
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, out)
}

func (s *Server) handleHatch(w http.ResponseWriter, r *http.Request) {
	out, err := s.backend.Hatch(r.Context())
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, out)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	out, err := s.backend.Sell(r.Context())
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, out)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.CheckCapabilities(r.Context()))
}

func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Manifest())
}

type frameAddedRequest struct {
	Added *bool `json:"added"`
}

// handleFrameAdded takes {"added": bool}. An empty body means added.
func (s *Server) handleFrameAdded(w http.ResponseWriter, r *http.Request) {
	var req frameAddedRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	added := req.Added == nil || *req.Added
	s.backend.SetFrameAdded(added)
	writeJSON(w, http.StatusOK, s.backend.Manifest())
}

func (s *Server) handleShare(w http.ResponseWriter, _ *http.Request) {
	cast, err := s.backend.Share()
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cast)
}

func (s *Server) handlePercentage(w http.ResponseWriter, r *http.Request) {
	pct, err := strconv.ParseUint(r.URL.Query().Get("pct"), 10, 64)
	if err != nil || pct > 100 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "pct must be an integer between 0 and 100"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount": s.backend.Percentage(pct)})
}

// handleNotify accepts the host notification body, logs it and relays it
// to the configured webhook.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req notify.Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	s.log.Info("notification", "fid", req.FID, "title", req.Notification.Title)
	if s.cfg.Forwarder != nil {
		if err := s.cfg.Forwarder.Post(r.Context(), req); err != nil {
			s.metrics.IncNotification("forward_failed")
			writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
			return
		}
		s.metrics.IncNotification("forwarded")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
