package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"SignalDesk/internal/ledger"
	"SignalDesk/internal/model"
)

type executeRequest struct {
	Platform string       `json:"platform"`
	Signal   model.Signal `json:"signal"`
}

type executeResponse struct {
	Success        bool            `json:"success"`
	OrderID        string          `json:"order_id,omitempty"`
	FilledPrice    decimal.Decimal `json:"filled_price,omitempty"`
	PositionSize   int             `json:"position_size,omitempty"`
	ExpirationDate string          `json:"expiration_date,omitempty"`
	FillAttempts   int             `json:"fill_attempts,omitempty"`
	StepFailed     int             `json:"step_failed,omitempty"`
	Error          string          `json:"error,omitempty"`
	Log            []string        `json:"log"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Platform == "" {
		req.Platform = "manual"
	}

	rec, err := s.Executor.Execute(r.Context(), req.Platform, req.Signal)
	if rec == nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := executeResponse{Log: rec.Log}
	if rec.Status == model.StatusSuccess {
		resp.Success = true
		resp.OrderID = rec.ID
		resp.FilledPrice = rec.FilledPrice
		resp.PositionSize = rec.FinalPositionSize
		resp.ExpirationDate = rec.FinalExpiration
		resp.FillAttempts = rec.FillAttempts
	} else {
		resp.StepFailed = rec.StepReached
		resp.Error = rec.ErrorMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	f := ledger.QueryFilter{
		Status:   model.ExecutionStatus(r.URL.Query().Get("status")),
		Platform: r.URL.Query().Get("platform"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	recs, err := s.Ledger.Query(f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []*model.ExecutionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleDeleteExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// An in-flight execution is cancelled first so the delete doesn't have to
	// wait out the fill loop.
	s.Executor.Cancel(id)

	ok, err := s.Ledger.Delete(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, _ *http.Request) {
	n, err := s.Ledger.Clear()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleGetBudgetFilters(w http.ResponseWriter, _ *http.Request) {
	list := []model.BudgetRule(s.Rules.BudgetRules())
	if list == nil {
		list = []model.BudgetRule{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSetBudgetFilters(w http.ResponseWriter, r *http.Request) {
	var list []model.BudgetRule
	if err := json.NewDecoder(r.Body).Decode(&list); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule list: "+err.Error())
		return
	}
	if err := s.Rules.ReplaceBudgetRules(list); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"saved": len(list)})
}

func (s *Server) handleGetSellingFilters(w http.ResponseWriter, _ *http.Request) {
	list := []model.SellingRule(s.Rules.SellingRules())
	if list == nil {
		list = []model.SellingRule{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSetSellingFilters(w http.ResponseWriter, r *http.Request) {
	var list []model.SellingRule
	if err := json.NewDecoder(r.Body).Decode(&list); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule list: "+err.Error())
		return
	}
	if err := s.Rules.ReplaceSellingRules(list); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"saved": len(list)})
}
