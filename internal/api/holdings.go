package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/ledger"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

type holdingRequest struct {
	Symbol     string            `json:"symbol"`
	Name       string            `json:"name"`
	AssetClass models.AssetClass `json:"asset_class"`
	Market     models.Market     `json:"market"`
}

func (req *holdingRequest) apply(h *models.Holding) error {
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		return badRequest("symbol is required")
	}
	if req.Market == "" {
		return badRequest("market is required")
	}
	if req.AssetClass == "" {
		req.AssetClass = models.AssetEquity
	}
	h.Symbol = symbol
	h.Name = strings.TrimSpace(req.Name)
	if h.Name == "" {
		h.Name = symbol
	}
	h.AssetClass = req.AssetClass
	h.Market = req.Market
	return nil
}

// GetHoldings handles GET /portfolios/{id}/holdings
func (h *Handler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := h.store.GetPortfolioByID(id); err != nil {
		respondError(w, r, err)
		return
	}
	holdings, err := h.store.GetHoldingsByPortfolio(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if holdings == nil {
		holdings = []*models.Holding{}
	}
	respondJSON(w, http.StatusOK, holdings)
}

// CreateHolding handles POST /portfolios/{id}/holdings
func (h *Handler) CreateHolding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req holdingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	portfolio, err := h.store.GetPortfolioByID(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	holding := models.Holding{PortfolioID: id}
	if err := req.apply(&holding); err != nil {
		respondError(w, r, err)
		return
	}
	if err := models.CheckHoldingCurrency(portfolio, &holding); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.store.CreateHolding(&holding); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, holding)
}

// GetHolding handles GET /holdings/{id}
func (h *Handler) GetHolding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	holding, err := h.store.GetHoldingByID(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, holding)
}

// UpdateHolding handles PUT /holdings/{id}. The market, and with it the
// currency, cannot change once the holding has transactions.
func (h *Handler) UpdateHolding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req holdingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	holding, err := h.store.GetHoldingByID(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	previousCurrency := holding.Currency()
	if err := req.apply(holding); err != nil {
		respondError(w, r, err)
		return
	}
	if holding.Currency() != previousCurrency {
		portfolio, err := h.store.GetPortfolioByID(holding.PortfolioID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if err := models.CheckHoldingCurrency(portfolio, holding); err != nil {
			respondError(w, r, err)
			return
		}
		txs, err := h.store.GetTransactionsByHolding(id)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if len(txs) > 0 {
			respondJSON(w, http.StatusConflict, map[string]string{
				"error": fmt.Sprintf("holding has transactions in %s", previousCurrency),
			})
			return
		}
	}
	if err := h.store.UpdateHolding(holding); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, holding)
}

// DeleteHolding handles DELETE /holdings/{id}
func (h *Handler) DeleteHolding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.store.DeleteHolding(id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transactionRequest struct {
	Kind     models.TransactionKind `json:"kind"`
	Date     string                 `json:"date"`
	Quantity decimal.Decimal        `json:"quantity"`
	Price    decimal.Decimal        `json:"price"`
	Fee      decimal.Decimal        `json:"fee"`
	Currency string                 `json:"currency"`
	Note     string                 `json:"note"`
}

func (req *transactionRequest) apply(tx *models.Transaction, holding *models.Holding) error {
	date, err := time.Parse(models.DateLayout, req.Date)
	if err != nil {
		return badRequest("date must be YYYY-MM-DD")
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = holding.Currency()
	}
	tx.HoldingID = holding.ID
	tx.Kind = req.Kind
	tx.Date = date
	tx.Quantity = req.Quantity
	tx.Price = req.Price
	tx.Fee = req.Fee
	tx.Currency = currency
	tx.Note = req.Note
	return nil
}

// ledgerOf returns the holding's current entries
func (h *Handler) ledgerOf(holdingID int64) ([]models.Transaction, error) {
	ptrs, err := h.store.GetTransactionsByHolding(holdingID)
	if err != nil {
		return nil, err
	}
	txs := make([]models.Transaction, len(ptrs))
	for i, t := range ptrs {
		txs[i] = *t
	}
	return txs, nil
}

// GetTransactions handles GET /holdings/{id}/transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := h.store.GetHoldingByID(id); err != nil {
		respondError(w, r, err)
		return
	}
	txs, err := h.ledgerOf(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ledger.Sorted(txs))
}

// CreateTransaction handles POST /holdings/{id}/transactions. The store
// rejects entries that would take the ledger below zero.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	holding, err := h.store.GetHoldingByID(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var tx models.Transaction
	if err := req.apply(&tx, holding); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.store.CreateTransaction(&tx); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction handles PUT /transactions/{id}
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	tx, err := h.store.GetTransactionByID(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	holding, err := h.store.GetHoldingByID(tx.HoldingID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := req.apply(tx, holding); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.store.UpdateTransaction(tx); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.store.DeleteTransaction(id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
