package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appcoupon "github.com/flashcart/flashcart/internal/application/coupon"
	apporder "github.com/flashcart/flashcart/internal/application/order"
	apppoint "github.com/flashcart/flashcart/internal/application/point"
	domcoupon "github.com/flashcart/flashcart/internal/domain/coupon"
	dominv "github.com/flashcart/flashcart/internal/domain/inventory"
	domorder "github.com/flashcart/flashcart/internal/domain/order"
	dompoint "github.com/flashcart/flashcart/internal/domain/point"
	"github.com/flashcart/flashcart/internal/observability"
)

type Handler struct {
	coupons *appcoupon.Pipeline
	orders  *apporder.Engine
	points  *apppoint.Ledger
	log     observability.Logger
	tel     observability.Telemetry
}

const componentHTTPHandler = "http_server"

func NewHandler(
	coupons *appcoupon.Pipeline,
	orders *apporder.Engine,
	points *apppoint.Ledger,
	logger observability.Logger,
	tel observability.Telemetry,
) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Handler{
		coupons: coupons,
		orders:  orders,
		points:  points,
		log:     logger.With(observability.F("component", componentHTTPHandler)),
		tel:     tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(ObservabilityMiddleware(h.log, h.tel))

	r.Route("/api", func(r chi.Router) {
		r.Post("/coupons", h.handleCreateCoupon)
		r.Get("/coupons/{couponID}", h.handleGetCoupon)
		r.Post("/coupons/{couponID}/replenish", h.handleReplenishCoupon)
		r.Post("/coupons/issue", h.handleIssueCoupon)
		r.Get("/users/{userID}/coupons", h.handleUserCoupons)
		r.Post("/users/{userID}/coupons/{couponID}/use", h.handleUseCoupon)
		r.Post("/orders", h.handleSubmitOrder)
		r.Get("/orders/{orderID}", h.handleGetOrder)
		r.Post("/points/charge", h.handleChargePoints)
		r.Get("/points/{userID}", h.handleGetBalance)
		r.Get("/points/{userID}/history", h.handlePointHistory)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

type createCouponRequest struct {
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

type couponResponse struct {
	CouponID  string `json:"coupon_id"`
	Name      string `json:"name"`
	Total     int    `json:"total"`
	Remaining int    `json:"remaining"`
}

func (h *Handler) handleCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	def, err := h.coupons.CreateCoupon(r.Context(), req.Name, req.Stock)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, couponResponse{
		CouponID:  def.ID,
		Name:      def.Name,
		Total:     def.Total,
		Remaining: def.Remaining,
	})
}

func (h *Handler) handleGetCoupon(w http.ResponseWriter, r *http.Request) {
	couponID := chi.URLParam(r, "couponID")

	def, err := h.coupons.Coupon(r.Context(), couponID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, couponResponse{
		CouponID:  def.ID,
		Name:      def.Name,
		Total:     def.Total,
		Remaining: def.Remaining,
	})
}

type replenishCouponRequest struct {
	Stock int `json:"stock"`
}

func (h *Handler) handleReplenishCoupon(w http.ResponseWriter, r *http.Request) {
	couponID := chi.URLParam(r, "couponID")

	var req replenishCouponRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.coupons.Replenish(r.Context(), couponID, req.Stock); err != nil {
		writeDomainError(w, err)
		return
	}

	def, err := h.coupons.Coupon(r.Context(), couponID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, couponResponse{
		CouponID:  def.ID,
		Name:      def.Name,
		Total:     def.Total,
		Remaining: def.Remaining,
	})
}

type issueCouponRequest struct {
	UserID   string `json:"user_id"`
	CouponID string `json:"coupon_id"`
}

type issueCouponResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// handleIssueCoupon acknowledges that the request was queued; the grant is
// observed later through the user coupon list.
func (h *Handler) handleIssueCoupon(w http.ResponseWriter, r *http.Request) {
	var req issueCouponRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	requestID, err := h.coupons.RequestIssue(r.Context(), req.UserID, req.CouponID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, issueCouponResponse{
		RequestID: requestID,
		Status:    "queued",
	})
}

type userCouponResponse struct {
	CouponID string    `json:"coupon_id"`
	Status   string    `json:"status"`
	IssuedAt time.Time `json:"issued_at"`
}

func (h *Handler) handleUserCoupons(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	grants, err := h.coupons.UserCoupons(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]userCouponResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, userCouponResponse{
			CouponID: g.CouponID,
			Status:   string(g.Status),
			IssuedAt: g.IssuedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleUseCoupon(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	couponID := chi.URLParam(r, "couponID")

	used, err := h.coupons.UseCoupon(r.Context(), userID, couponID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userCouponResponse{
		CouponID: used.CouponID,
		Status:   string(used.Status),
		IssuedAt: used.IssuedAt,
	})
}

type orderLineRequest struct {
	OptionID string `json:"option_id"`
	Quantity int    `json:"quantity"`
}

type submitOrderRequest struct {
	UserID      string             `json:"user_id"`
	Lines       []orderLineRequest `json:"lines"`
	PointsToUse int64              `json:"points_to_use"`
}

type submitOrderResponse struct {
	OrderID      string `json:"order_id"`
	Status       string `json:"status"`
	TotalPrice   int64  `json:"total_price"`
	TotalCharged int64  `json:"total_charged"`
}

func (h *Handler) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	lines := make([]apporder.LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, apporder.LineInput{OptionID: l.OptionID, Quantity: l.Quantity})
	}

	result, err := h.orders.Submit(r.Context(), apporder.SubmitInput{
		UserID:      req.UserID,
		Lines:       lines,
		PointsToUse: req.PointsToUse,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitOrderResponse{
		OrderID:      result.OrderID,
		Status:       string(result.Status),
		TotalPrice:   result.TotalPrice,
		TotalCharged: result.TotalCharged,
	})
}

type orderResponse struct {
	OrderID      string `json:"order_id"`
	UserID       string `json:"user_id"`
	Status       string `json:"status"`
	TotalCharged int64  `json:"total_charged"`
	Failure      string `json:"failure_reason,omitempty"`
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, orderResponse{
		OrderID:      order.ID,
		UserID:       order.UserID,
		Status:       string(order.Status),
		TotalCharged: order.TotalCharged,
		Failure:      order.FailureReason,
	})
}

type chargePointsRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

type balanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

func (h *Handler) handleChargePoints(w http.ResponseWriter, r *http.Request) {
	var req chargePointsRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	balance, err := h.points.Charge(r.Context(), req.UserID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{UserID: req.UserID, Balance: balance})
}

func (h *Handler) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	balance, err := h.points.Balance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{UserID: userID, Balance: balance})
}

type pointHistoryResponse struct {
	Kind      string    `json:"kind"`
	Amount    int64     `json:"amount"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handlePointHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	entries, err := h.points.History(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]pointHistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, pointHistoryResponse{
			Kind:      string(e.Kind),
			Amount:    e.Amount,
			Balance:   e.Balance,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeJSON(ctx context.Context, r *http.Request, dst any) error {
	_ = ctx
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, dominv.ErrNotFound),
		errors.Is(err, domcoupon.ErrNotFound),
		errors.Is(err, dompoint.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, dominv.ErrOutOfStock),
		errors.Is(err, dompoint.ErrInsufficientBalance),
		errors.Is(err, domcoupon.ErrAlreadyUsed):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domorder.ErrInvalidRequest),
		errors.Is(err, dominv.ErrInvalidQuantity),
		errors.Is(err, dompoint.ErrInvalidAmount),
		errors.Is(err, dompoint.ErrBalanceLimit),
		errors.Is(err, domcoupon.ErrInvalidRequest),
		errors.Is(err, domcoupon.ErrInvalidStock):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
