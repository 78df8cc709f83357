package api

import (
	"net/http"
	"strings"

	"github.com/trogers1052/portfolio-tracker/internal/currency"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

type portfolioRequest struct {
	Name         string             `json:"name"`
	AccountType  models.AccountType `json:"account_type"`
	BaseCurrency string             `json:"base_currency"`
	SortOrder    int                `json:"sort_order"`
	Color        string             `json:"color"`
}

func (req *portfolioRequest) apply(p *models.Portfolio) error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return badRequest("name is required")
	}
	if req.AccountType == "" {
		req.AccountType = models.AccountGeneral
	}
	base := strings.ToUpper(strings.TrimSpace(req.BaseCurrency))
	if err := currency.Validate(base); err != nil {
		return badRequest(err.Error())
	}

	p.Name = req.Name
	p.AccountType = req.AccountType
	p.BaseCurrency = base
	p.SortOrder = req.SortOrder
	p.Color = req.Color
	return nil
}

// GetPortfolios handles GET /portfolios
func (h *Handler) GetPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.store.GetAllPortfolios()
	if err != nil {
		respondError(w, r, err)
		return
	}
	if portfolios == nil {
		portfolios = []*models.Portfolio{}
	}
	respondJSON(w, http.StatusOK, portfolios)
}

// GetPortfolio handles GET /portfolios/{id}
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.store.GetPortfolioByID(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// CreatePortfolio handles POST /portfolios
func (h *Handler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	var p models.Portfolio
	if err := req.apply(&p); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.store.CreatePortfolio(&p); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// UpdatePortfolio handles PUT /portfolios/{id}
func (h *Handler) UpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req portfolioRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.store.GetPortfolioByID(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := req.apply(p); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.store.UpdatePortfolio(p); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// DeletePortfolio handles DELETE /portfolios/{id}
func (h *Handler) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.store.DeletePortfolio(id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
