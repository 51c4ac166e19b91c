// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/latchkey-dev/latchkey/lib/auditlog"
	"github.com/latchkey-dev/latchkey/lib/authstore"
	"github.com/latchkey-dev/latchkey/lib/gateway"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// rateLimit applies the shared per-address brake on the code-bearing
// endpoints. Returns false with the response already sent when the
// caller is over budget.
func (s *Server) rateLimit(w http.ResponseWriter, r *http.Request, ip string) bool {
	if s.limiter.allow(ip) {
		return true
	}
	s.logger.Warn("rate limited", "ip", ip, "path", r.URL.Path)
	s.sendError(w, http.StatusTooManyRequests, "rate limited")
	return false
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	ip, local := s.client(r)
	if !s.rateLimit(w, r, ip) {
		return
	}

	var req codeAuthRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.gateway.VerifyCode(req.Code, req.Device, local, ip)
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleLocalAuth(w http.ResponseWriter, r *http.Request) {
	ip, local := s.client(r)
	if !s.rateLimit(w, r, ip) {
		return
	}

	var req localAuthRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.gateway.LocalAutoAuth(req.Device, local, ip)
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleRequestAccess(w http.ResponseWriter, r *http.Request) {
	ip, _ := s.client(r)
	if !s.rateLimit(w, r, ip) {
		return
	}

	var req codeAuthRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	request, err := s.gateway.RequestAccess(req.Code, req.Device, ip)
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	s.writeJSON(w, requestAccessResponse{RequestID: request.ID})
}

func (s *Server) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	request, err := s.gateway.CheckStatus(r.PathValue("id"))
	if err != nil {
		// Pollers switch on the status field, so an unknown or
		// purged request answers 404 with a status they can render.
		if errors.Is(err, gateway.ErrNotFound) {
			s.writeJSONStatus(w, http.StatusNotFound, statusResponse{Status: "not_found"})
			return
		}
		s.gatewayError(w, r, err)
		return
	}
	s.writeJSON(w, statusResponse{
		Status:   string(request.Status),
		DeviceID: request.DeviceID,
		Token:    request.Token,
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	ip, _ := s.client(r)
	device, err := s.gateway.Validate(bearerToken(r), ip)
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	s.writeJSON(w, validateResponse{Valid: true, DeviceID: device.ID, Device: device})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, err := s.gateway.Logout(bearerToken(r)); err != nil {
		s.gatewayError(w, r, err)
		return
	}
	s.writeJSON(w, successResponse{Success: true})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	list, err := s.gateway.ListDevices(bearerToken(r))
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	if list.Devices == nil {
		list.Devices = []authstore.Device{}
	}
	s.writeJSON(w, list)
}

func (s *Server) handleRenameDevice(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	device, err := s.gateway.RenameDevice(bearerToken(r), r.PathValue("id"), req.Name)
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	s.writeJSON(w, deviceResponse{Success: true, Device: device})
}

func (s *Server) handleRevokeDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.RevokeDevice(bearerToken(r), r.PathValue("id")); err != nil {
		s.gatewayError(w, r, err)
		return
	}
	s.writeJSON(w, successResponse{Success: true})
}

func (s *Server) handleRevokeOthers(w http.ResponseWriter, r *http.Request) {
	removed, err := s.gateway.RevokeOthers(bearerToken(r))
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	s.writeJSON(w, revokeOthersResponse{Success: true, RevokedCount: removed})
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	_, local := s.client(r)
	requests, err := s.gateway.ListPending(bearerToken(r), local)
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	if requests == nil {
		requests = []authstore.PendingRequest{}
	}
	s.writeJSON(w, pendingResponse{Requests: requests})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	_, local := s.client(r)
	device, err := s.gateway.Approve(bearerToken(r), local, r.PathValue("id"))
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	s.writeJSON(w, deviceResponse{Success: true, Device: device})
}

func (s *Server) handleDeny(w http.ResponseWriter, r *http.Request) {
	_, local := s.client(r)
	if err := s.gateway.Deny(bearerToken(r), local, r.PathValue("id")); err != nil {
		s.gatewayError(w, r, err)
		return
	}
	s.writeJSON(w, successResponse{Success: true})
}

func (s *Server) handleAccessCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.gateway.AccessCode(bearerToken(r))
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	s.writeJSON(w, accessCodeResponse{Code: code})
}

func (s *Server) handleRotateSecret(w http.ResponseWriter, r *http.Request) {
	_, local := s.client(r)
	code, err := s.gateway.RotateSecret(bearerToken(r), local)
	if err != nil {
		s.gatewayError(w, r, err)
		return
	}
	s.writeJSON(w, accessCodeResponse{Code: code})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	ip, local := s.client(r)
	if _, err := s.gateway.Validate(bearerToken(r), ip); err != nil {
		s.gatewayError(w, r, err)
		return
	}
	if !local {
		s.sendError(w, http.StatusForbidden, "forbidden")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.sendError(w, http.StatusBadRequest, "invalid limit %q", raw)
			return
		}
		limit = parsed
	}

	events, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("reading audit trail", "error", err)
		s.sendError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if events == nil {
		events = []auditlog.Event{}
	}
	s.writeJSON(w, auditResponse{Events: events})
}
