// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillang/leadg-crm-backend-sub001/internal/apperrors"
	"github.com/skillang/leadg-crm-backend-sub001/internal/model"
	"github.com/skillang/leadg-crm-backend-sub001/internal/service"
)

type CampaignController struct {
	CampaignService   *service.CampaignService
	EnrollmentService *service.EnrollmentService
	Monitor           *service.CriteriaMonitor
	Logger            *zap.Logger
}

func (c *CampaignController) Routes(r chi.Router) {
	r.Post("/campaigns", c.CreateCampaign)
	r.Get("/campaigns", c.ListCampaigns)
	r.Get("/campaigns/{id}", c.GetCampaignDetails)
	r.Post("/campaigns/{id}/enroll", c.Enroll)
	r.Post("/campaigns/{id}/pause", c.Pause)
	r.Post("/campaigns/{id}/resume", c.Resume)
	r.Delete("/campaigns/{id}", c.Delete)
	r.Post("/campaigns/{id}/personalized-preview", c.PersonalizedPreview)
	r.Post("/leads/{id}/attributes", c.LeadAttributesChanged)
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var in service.CreateCampaignInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := c.CampaignService.CreateCampaign(r.Context(), in)
	if err != nil {
		c.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	channel := r.URL.Query().Get("channel")
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, channel, status)
	if err != nil {
		c.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := c.campaignID(w, r)
	if !ok {
		return
	}

	details, err := c.CampaignService.GetCampaignDetails(r.Context(), id)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (c *CampaignController) Enroll(w http.ResponseWriter, r *http.Request) {
	id, ok := c.campaignID(w, r)
	if !ok {
		return
	}

	result, err := c.EnrollmentService.Enroll(r.Context(), id)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *CampaignController) Pause(w http.ResponseWriter, r *http.Request) {
	c.statusTransition(w, r, c.CampaignService.Pause)
}

func (c *CampaignController) Resume(w http.ResponseWriter, r *http.Request) {
	c.statusTransition(w, r, c.CampaignService.Resume)
}

func (c *CampaignController) Delete(w http.ResponseWriter, r *http.Request) {
	c.statusTransition(w, r, c.CampaignService.Delete)
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	id, ok := c.campaignID(w, r)
	if !ok {
		return
	}

	var body struct {
		LeadID           uuid.UUID `json:"lead_id"`
		OverrideTemplate *string   `json:"override_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	rendered, err := c.CampaignService.RenderPreview(r.Context(), id, body.LeadID, body.OverrideTemplate)
	if err != nil {
		c.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rendered_message": rendered,
		"lead_id":          body.LeadID,
	})
}

// LeadAttributesChanged is the hook the lead-update path calls after a lead's
// qualification attributes change.
func (c *CampaignController) LeadAttributesChanged(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	leadID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid lead id", http.StatusBadRequest)
		return
	}

	var attrs model.LeadAttributes
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := c.Monitor.OnLeadAttributesChanged(r.Context(), leadID, attrs); err != nil {
		c.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CampaignController) statusTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) error) {
	id, ok := c.campaignID(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), id); err != nil {
		c.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CampaignController) campaignID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (c *CampaignController) writeError(w http.ResponseWriter, err error) {
	var notFound *apperrors.ErrCampaignNotFound
	var leadNotFound *apperrors.ErrLeadNotFound
	var notActive *apperrors.ErrCampaignNotActive
	var validation *apperrors.ValidationError

	switch {
	case errors.As(err, &notFound), errors.As(err, &leadNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &notActive):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"field": validation.Field,
			"error": validation.Message,
		})
	default:
		c.Logger.Error("request failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
