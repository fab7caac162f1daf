package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/reoring/conformance/internal/logger"
	"github.com/reoring/conformance/internal/metrics"
	"github.com/reoring/conformance/middleware"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type operationView struct {
	Operation string `json:"operation"`
	Code      int    `json:"code"`
	Schema    string `json:"schema"`
}

type schemasView struct {
	Schemas    []string        `json:"schemas"`
	Payloads   []string        `json:"payloads"`
	Operations []operationView `json:"operations"`
}

func (s *Server) schemas(w http.ResponseWriter, r *http.Request) {
	m := s.eng.Model()
	view := schemasView{
		Schemas:    m.SchemaNames(),
		Payloads:   []string{},
		Operations: []operationView{},
	}
	for _, n := range m.PayloadCandidates() {
		view.Payloads = append(view.Payloads, n.Name())
	}
	for _, rd := range m.Responses() {
		view.Operations = append(view.Operations, operationView{Operation: rd.OperationID, Code: rd.Code, Schema: rd.Schema})
	}
	middleware.WriteJSON(w, http.StatusOK, view)
}

func (s *Server) validatePayload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)
	body, err := middleware.ReadBody(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		log.Err(err).Msg("request body rejected")
		middleware.WriteBodyError(w, err)
		return
	}
	id := w.Header().Get(requestIDHeader)

	start := time.Now()
	res, err := s.eng.ValidatePayload(body)
	metrics.Observe(metrics.TargetPayload, res.Errors, err, time.Since(start))
	if err != nil {
		log.Err(err).Msg("payload validation fault")
		middleware.WriteFault(w, id, err)
		return
	}

	rep := middleware.NewReport(id, res.Schema, res.Errors)
	rep.Valid = res.Valid()
	log.Debug().Str("model", res.Schema).Int("errors", len(res.Errors)).Msg("payload validated")
	middleware.WriteJSON(w, http.StatusOK, rep)
}

func (s *Server) validateResponse(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)
	q := r.URL.Query()
	op := q.Get("operation")
	if op == "" {
		middleware.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "operation is required"})
		return
	}
	status, err := strconv.Atoi(q.Get("status"))
	if err != nil || status < 100 || status > 599 {
		middleware.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be an HTTP status code"})
		return
	}
	body, err := middleware.ReadBody(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		log.Err(err).Msg("request body rejected")
		middleware.WriteBodyError(w, err)
		return
	}
	id := w.Header().Get(requestIDHeader)

	start := time.Now()
	errs, err := s.eng.ValidateResponseBytes(q.Get("request_url"), body, op, status)
	metrics.Observe(metrics.TargetResponse, errs, err, time.Since(start))
	if err != nil {
		log.Err(err).Str("operation", op).Msg("response validation fault")
		middleware.WriteFault(w, id, err)
		return
	}

	model := ""
	if n, ok := s.eng.Model().Response(op, status); ok {
		model = n.Name()
	}
	log.Debug().Str("operation", op).Int("code", status).Int("errors", len(errs)).Msg("response validated")
	middleware.WriteJSON(w, http.StatusOK, middleware.NewReport(id, model, errs))
}
