package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/edukit/commerce/internal/domain/product"
)

type snapshotRequest struct {
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	Pricing     pricingRequest           `json:"pricing"`
	Discount    *discountRequest         `json:"discount"`
	Contents    []snapshotContentRequest `json:"contents"`
}

type pricingRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type discountRequest struct {
	Type      string          `json:"type"`
	Value     decimal.Decimal `json:"value"`
	Enabled   bool            `json:"enabled"`
	ValidFrom *time.Time      `json:"validFrom"`
	ValidTo   *time.Time      `json:"validTo"`
}

type snapshotContentRequest struct {
	Position int    `json:"position"`
	Body     string `json:"body"`
}

// getCurrentSnapshot returns the product's current snapshot together with the
// price effective right now.
func (h *Handler) getCurrentSnapshot(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")

	snap, err := h.products.CurrentSnapshot(r.Context(), productID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	price, err := product.EffectivePrice(snap.Pricing, snap.Discount, time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeSnapshot(&e, snap, &price)
	writeJSON(w, http.StatusOK, &e)
}

// createSnapshot appends a new snapshot version for the product.
func (h *Handler) createSnapshot(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")

	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Title == "" {
		badRequest(w, "title is required")
		return
	}
	if req.Pricing.Amount.IsNegative() {
		badRequest(w, "pricing amount must not be negative")
		return
	}

	in := product.SnapshotInput{
		Title:       req.Title,
		Description: req.Description,
		Pricing:     product.Pricing{Amount: req.Pricing.Amount},
	}
	if d := req.Discount; d != nil {
		in.Discount = &product.Discount{
			Type:      product.DiscountType(d.Type),
			Value:     d.Value,
			Enabled:   d.Enabled,
			ValidFrom: d.ValidFrom,
			ValidTo:   d.ValidTo,
		}
	}
	for _, c := range req.Contents {
		in.Contents = append(in.Contents, product.Content{
			Position: c.Position,
			Body:     c.Body,
		})
	}

	snap, err := h.products.CreateSnapshot(r.Context(), productID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeSnapshot(&e, snap, nil)
	writeJSON(w, http.StatusCreated, &e)
}

// encodeSnapshot writes the snapshot document. effectivePrice is included
// when non-nil.
func encodeSnapshot(e *jx.Encoder, snap *product.Snapshot, effectivePrice *decimal.Decimal) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(snap.ID)
	e.FieldStart("productId")
	e.Str(snap.ProductID)
	e.FieldStart("title")
	e.Str(snap.Title)
	e.FieldStart("description")
	e.Str(snap.Description)
	e.FieldStart("pricing")
	e.ObjStart()
	e.FieldStart("amount")
	e.Str(snap.Pricing.Amount.String())
	e.ObjEnd()

	if d := snap.Discount; d != nil {
		e.FieldStart("discount")
		e.ObjStart()
		e.FieldStart("type")
		e.Str(string(d.Type))
		e.FieldStart("value")
		e.Str(d.Value.String())
		e.FieldStart("enabled")
		e.Bool(d.Enabled)
		if d.ValidFrom != nil {
			e.FieldStart("validFrom")
			e.Str(d.ValidFrom.Format(time.RFC3339))
		}
		if d.ValidTo != nil {
			e.FieldStart("validTo")
			e.Str(d.ValidTo.Format(time.RFC3339))
		}
		e.ObjEnd()
	}

	e.FieldStart("contents")
	e.ArrStart()
	for _, c := range snap.Contents {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(c.ID)
		e.FieldStart("position")
		e.Int(c.Position)
		e.FieldStart("body")
		e.Str(c.Body)
		e.ObjEnd()
	}
	e.ArrEnd()

	if effectivePrice != nil {
		e.FieldStart("effectivePrice")
		e.Str(effectivePrice.String())
	}

	e.FieldStart("createdAt")
	e.Str(snap.CreatedAt.Format(time.RFC3339))
	e.ObjEnd()
}
