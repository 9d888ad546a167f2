// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/pledge-escrow/internal/errors"
	"github.com/unclebandit/pledge-escrow/internal/repository"
	"github.com/unclebandit/pledge-escrow/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Audit           repository.AuditRepository
}

// Routes mounts every campaign endpoint on r.
func (c *CampaignController) Routes(r chi.Router) {
	r.Post("/campaigns", c.CreateCampaign)
	r.Get("/campaigns", c.ListCampaigns)
	r.Get("/campaigns/{id}", c.GetCampaign)
	r.Get("/campaigns/{id}/events", c.ListEvents)
	r.Post("/campaigns/{id}/pledges", c.Pledge)
	r.Post("/campaigns/{id}/claim", c.ClaimFunds)
	r.Post("/campaigns/{id}/refund", c.WithdrawRefund)
	r.Post("/campaigns/{id}/finalize", c.FinalizeCampaign)
	r.Get("/balances/{asset}/{holder}", c.GetBalance)
}

var statusByKind = map[appErrors.Kind]int{
	appErrors.InvalidGoalAmount:       http.StatusBadRequest,
	appErrors.DeadlineInThePast:       http.StatusBadRequest,
	appErrors.PledgeAmountZero:        http.StatusBadRequest,
	appErrors.AssetMismatch:           http.StatusBadRequest,
	appErrors.CampaignNotFound:        http.StatusNotFound,
	appErrors.NoPledgeToRefund:        http.StatusNotFound,
	appErrors.Unauthorized:            http.StatusUnauthorized,
	appErrors.NotTheCreator:           http.StatusForbidden,
	appErrors.CampaignEnded:           http.StatusConflict,
	appErrors.CampaignStillActive:     http.StatusConflict,
	appErrors.CampaignNotSuccessful:   http.StatusConflict,
	appErrors.CampaignNotFailed:       http.StatusConflict,
	appErrors.FundsAlreadyClaimed:     http.StatusConflict,
	appErrors.CampaignAlreadyResolved: http.StatusConflict,
	appErrors.PerkTransferFailed:      http.StatusUnprocessableEntity,
	appErrors.InsufficientBalance:     http.StatusUnprocessableEntity,
	appErrors.AmountOverflow:          http.StatusUnprocessableEntity,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind, ok := appErrors.KindOf(err)
	if !ok {
		log.Println("❌ internal error:", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal", "message": err.Error()})
		return
	}
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]any{
		"error":   kind.String(),
		"code":    int(kind),
		"message": err.Error(),
	})
}

func campaignID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Creator  string              `json:"creator"`
		Goal     uint64              `json:"goal"`
		Deadline string              `json:"deadline"`
		Perk     *service.PerkConfig `json:"perk,omitempty"`
	}
	if !decode(w, r, &body) {
		return
	}
	deadline, err := time.Parse(time.RFC3339, body.Deadline)
	if err != nil {
		http.Error(w, "deadline must be RFC3339", http.StatusBadRequest)
		return
	}

	id, err := c.CampaignService.CreateCampaign(r.Context(), body.Creator, body.Goal, deadline, body.Perk)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"campaign_id": id})
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	state := r.URL.Query().Get("state")
	creator := r.URL.Query().Get("creator")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, state, creator)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	campaign, err := c.CampaignService.GetCampaign(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	if c.Audit == nil {
		http.Error(w, "audit trail not configured", http.StatusNotImplemented)
		return
	}
	events, err := c.Audit.ListByCampaign(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": events})
}

func (c *CampaignController) Pledge(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var body struct {
		Backer string `json:"backer"`
		Amount uint64 `json:"amount"`
		Asset  string `json:"asset"`
	}
	if !decode(w, r, &body) {
		return
	}

	if err := c.CampaignService.Pledge(r.Context(), body.Backer, id, body.Amount, body.Asset); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaign_id": id, "pledged": body.Amount})
}

func (c *CampaignController) ClaimFunds(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var body struct {
		Creator string `json:"creator"`
		Asset   string `json:"asset"`
	}
	if !decode(w, r, &body) {
		return
	}

	if err := c.CampaignService.ClaimFunds(r.Context(), body.Creator, id, body.Asset); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaign_id": id, "status": "claimed"})
}

func (c *CampaignController) WithdrawRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var body struct {
		Backer string `json:"backer"`
		Asset  string `json:"asset"`
	}
	if !decode(w, r, &body) {
		return
	}

	if err := c.CampaignService.WithdrawRefund(r.Context(), body.Backer, id, body.Asset); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaign_id": id, "status": "refunded"})
}

func (c *CampaignController) FinalizeCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	state, err := c.CampaignService.FinalizeCampaign(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaign_id": id, "state": state})
}

func (c *CampaignController) GetBalance(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	holder := chi.URLParam(r, "holder")
	balance, err := c.CampaignService.GetBalance(r.Context(), asset, holder)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"asset": asset, "holder": holder, "balance": balance})
}
