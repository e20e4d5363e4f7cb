package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/edukit/commerce/internal/domain/coupon"
)

type issueTicketRequest struct {
	UserID string `json:"userId"`
}

// issueTicket issues a ticket from a coupon's public supply.
func (h *Handler) issueTicket(w http.ResponseWriter, r *http.Request) {
	couponID := r.PathValue("id")

	var req issueTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.UserID == "" {
		badRequest(w, "userId is required")
		return
	}

	ticket, err := h.issuer.IssuePublic(r.Context(), couponID, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeTicket(&e, ticket)
	writeJSON(w, http.StatusCreated, &e)
}

// redeemCode exchanges a disposable redemption code for a ticket.
func (h *Handler) redeemCode(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	var req issueTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.UserID == "" {
		badRequest(w, "userId is required")
		return
	}

	ticket, err := h.issuer.Redeem(r.Context(), code, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeTicket(&e, ticket)
	writeJSON(w, http.StatusCreated, &e)
}

func encodeTicket(e *jx.Encoder, t *coupon.Ticket) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(t.ID)
	e.FieldStart("couponId")
	e.Str(t.CouponID)
	e.FieldStart("userId")
	e.Str(t.UserID)
	if t.DisposableID != "" {
		e.FieldStart("disposableId")
		e.Str(t.DisposableID)
	}
	e.FieldStart("createdAt")
	e.Str(t.CreatedAt.Format(time.RFC3339))
	if t.ExpiredAt != nil {
		e.FieldStart("expiredAt")
		e.Str(t.ExpiredAt.Format(time.RFC3339))
	}
	e.ObjEnd()
}
