package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/edukit/commerce/internal/domain/order"
)

type placeOrderRequest struct {
	UserID         string          `json:"userId"`
	ProductID      string          `json:"productId"`
	PaymentID      string          `json:"paymentId"`
	PaymentMethod  string          `json:"paymentMethod"`
	Amount         decimal.Decimal `json:"amount"`
	CouponTicketID string          `json:"couponTicketId"`
}

type refundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// placeOrder runs the purchase saga and returns the created order document.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.UserID == "" || req.ProductID == "" {
		badRequest(w, "userId and productId are required")
		return
	}
	if req.Amount.IsNegative() {
		badRequest(w, "amount must not be negative")
		return
	}

	p, err := h.purchases.Purchase(r.Context(), order.PurchaseInput{
		UserID:         req.UserID,
		ProductID:      req.ProductID,
		PaymentID:      req.PaymentID,
		PaymentMethod:  req.PaymentMethod,
		Amount:         req.Amount,
		CouponTicketID: req.CouponTicketID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.Order.ID)
	e.FieldStart("userId")
	e.Str(p.Order.UserID)
	e.FieldStart("productKind")
	e.Str(string(p.Order.ProductKind))
	e.FieldStart("title")
	e.Str(p.Order.Title)
	e.FieldStart("amount")
	e.Str(p.Order.Amount.String())
	if p.Order.PaidAt != nil {
		e.FieldStart("paidAt")
		e.Str(p.Order.PaidAt.Format(time.RFC3339))
	}
	e.FieldStart("productSnapshotId")
	e.Str(p.SubOrder.ProductSnapshotID)
	e.FieldStart("enrollmentId")
	e.Str(p.Enrollment.ID)
	if p.TicketPayment != nil {
		e.FieldStart("couponTicketId")
		e.Str(p.TicketPayment.TicketID)
	}
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

// refundOrder records a refund against an order.
func (h *Handler) refundOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	refund, err := h.refunds.Refund(r.Context(), orderID, req.Amount, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Str(refund.ID)
	e.FieldStart("orderId")
	e.Str(refund.OrderID)
	e.FieldStart("amount")
	e.Str(refund.Amount.String())
	e.FieldStart("reason")
	e.Str(refund.Reason)
	e.FieldStart("refundedAt")
	e.Str(refund.RefundedAt.Format(time.RFC3339))
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}
