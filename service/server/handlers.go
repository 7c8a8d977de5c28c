package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	st "labfolio/data/storage"
	"labfolio/service/core"
	sm "labfolio/service/models"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	res := sm.PingResponse{Message: "pong", Database: "not configured"}
	if s.sc.Database != nil {
		res.Database = "ok"
		if err := s.sc.Database.Ping(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("database ping failed")
			res.Database = "unavailable"
		}
	}

	writeOk(w, s, &res)
}

func (s *Server) handleFactors(w http.ResponseWriter, r *http.Request) {
	factors, err := s.sc.GetFactors(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeOk(w, s, &factors)
}

func (s *Server) handlePortfolioHoldings(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("portfolio_id")
	portfolioId, err := uuid.Parse(raw)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid portfolio_id %q", errBadRequest, raw))
		return
	}

	portfolio, holdings, err := s.sc.GetPortfolioHoldings(r.Context(), portfolioId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeOk(w, s, &sm.HoldingsResponse{
		PortfolioId:   portfolio.PortfolioId,
		PortfolioName: portfolio.PortfolioName,
		Holdings:      holdings,
	})
}

func (s *Server) handleValidateFactorModel(w http.ResponseWriter, r *http.Request) {
	var req sm.ValidateFactorModelRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := core.ValidateFactorModel(req.Factors, req.Holdings); err != nil {
		s.writeError(w, err)
		return
	}

	writeOk(w, s, &sm.ValidateFactorModelResponse{Valid: true})
}

func (s *Server) handleFactorModel(w http.ResponseWriter, r *http.Request) {
	var req sm.FactorModelRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.sc.RunFactorModel(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeOk(w, s, res)
}

// decode reads a json body, writing a 400 and returning false when it cannot
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid request body: %w", errBadRequest, err))
		return false
	}
	return true
}

// statusFor maps an error kind to the response status
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrPortfolioNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDataUnavailable),
		errors.Is(err, core.ErrNumerical),
		errors.Is(err, st.ErrMalformedPortfolio):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	s.writeJSON(w, status, sm.GetServiceResponseError(err))
}

func writeOk[T any](w http.ResponseWriter, s *Server, data *T) {
	s.writeJSON(w, http.StatusOK, sm.GetServiceResponseOk(data))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode json response")
	}
}
