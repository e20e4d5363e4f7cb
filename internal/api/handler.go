package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/edukit/commerce/internal/domain/coupon"
	"github.com/edukit/commerce/internal/domain/order"
	"github.com/edukit/commerce/internal/domain/product"
	"github.com/edukit/commerce/internal/domain/user"
	"github.com/edukit/commerce/internal/payment"
)

// Handler exposes the commerce operations over HTTP, delegating business
// logic to the injected domain services and repositories.
type Handler struct {
	products  product.Repository
	issuer    *coupon.Issuer
	purchases *order.PurchaseService
	refunds   *order.Ledger
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	issuer *coupon.Issuer,
	purchases *order.PurchaseService,
	refunds *order.Ledger,
) *Handler {
	return &Handler{
		products:  products,
		issuer:    issuer,
		purchases: purchases,
		refunds:   refunds,
	}
}

// Routes registers all API endpoints on the given mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products/{id}/snapshot", h.getCurrentSnapshot)
	mux.HandleFunc("POST /api/products/{id}/snapshots", h.createSnapshot)
	mux.HandleFunc("POST /api/coupons/{id}/tickets", h.issueTicket)
	mux.HandleFunc("POST /api/coupon-codes/{code}/tickets", h.redeemCode)
	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("POST /api/orders/{id}/refunds", h.refundOrder)
}

// writeJSON writes an encoded jx document with the given status code.
func writeJSON(w http.ResponseWriter, status int, enc *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(enc.Bytes())
}

// writeError maps a domain error to an HTTP status and writes the standard
// error body. Unmapped errors are logged and reported as a plain 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := mapError(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		message = "internal server error"
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, product.ErrSnapshotNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrCodeNotFound),
		errors.Is(err, coupon.ErrTicketNotFound),
		errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, coupon.ErrVolumeExceeded),
		errors.Is(err, coupon.ErrPerUserCapExceeded),
		errors.Is(err, coupon.ErrAlreadyRedeemed):
		return http.StatusConflict, err.Error()

	case errors.Is(err, coupon.ErrNotOpenYet),
		errors.Is(err, coupon.ErrClosed),
		errors.Is(err, coupon.ErrCodeExpired),
		errors.Is(err, coupon.ErrTicketExpired),
		errors.Is(err, coupon.ErrNotEligible),
		errors.Is(err, coupon.ErrBelowThreshold),
		errors.Is(err, order.ErrAmountMismatch),
		errors.Is(err, order.ErrRefundExceedsOrder),
		errors.Is(err, order.ErrInvalidRefundAmount),
		errors.Is(err, payment.ErrPaymentNotFound):
		return http.StatusUnprocessableEntity, err.Error()

	case errors.Is(err, payment.ErrTimeout):
		return http.StatusGatewayTimeout, "payment gateway timed out"
	}

	var gwErr *payment.GatewayError
	if errors.As(err, &gwErr) {
		return http.StatusBadGateway, "payment gateway error"
	}

	return http.StatusInternalServerError, err.Error()
}

func badRequest(w http.ResponseWriter, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(http.StatusBadRequest)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, http.StatusBadRequest, &e)
}
