package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"storefront/internal/pkg/auth"
	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/application"
	"storefront/internal/service/order/domain"
)

// IdempotencyHeader 是客户端重试结账时携带的请求头
const IdempotencyHeader = "Idempotency-Key"

// OrderHandler 封装了 order 服务的 HTTP 处理器
type OrderHandler struct {
	service *application.OrderApplicationService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.OrderApplicationService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 注册公开路由
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout", h.handleCheckout)
	r.Get("/orders", h.handleListOrders)
	r.Get("/orders/{id}", h.handleGetOrder)
}

// RegisterAdminRoutes 挂载在已做角色校验的 /admin 路由组下
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/orders/{id}", h.handleGetOrder)
	r.Patch("/orders/{id}/status", h.handleUpdateStatus)
}

func (h *OrderHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req application.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, application.CheckoutResponse{Error: "Invalid request body"})
		return
	}

	var userID string
	if u := auth.UserFromContext(r.Context()); u != nil {
		userID = u.ID
	}

	resp, err := h.service.Checkout(r.Context(), &req, userID, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeCheckoutError 根据错误类型返回不同的 HTTP 状态码
func (h *OrderHandler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stockErr *domain.StockError
		validErr *domain.ValidationError
		payErr   *domain.PaymentError
	)
	resp := application.CheckoutResponse{Error: err.Error()}
	statusCode := http.StatusInternalServerError

	switch {
	case errors.As(err, &stockErr):
		statusCode = http.StatusBadRequest
		resp.StockErrors = application.ToStockErrorDTOs(stockErr)
	case errors.As(err, &validErr):
		statusCode = http.StatusBadRequest
	case errors.As(err, &payErr):
		resp.Error = payErr.Message
		if payErr.Declined {
			statusCode = http.StatusBadRequest
		}
	case errors.Is(err, domain.ErrCheckoutInProgress):
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrIdempotencyKeyReused):
		statusCode = http.StatusUnprocessableEntity
	default:
		var persistErr *domain.PersistenceError
		if !errors.As(err, &persistErr) {
			resp.Error = "Checkout failed"
		}
	}
	if statusCode == http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("checkout request failed")
	}
	writeJSON(w, statusCode, resp)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orders, err := h.service.ListOrders(r.Context(), u.ID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	var userID string
	if u != nil {
		userID = u.ID
	}
	resp, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"), userID, u.IsAdmin())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req application.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validErr *domain.ValidationError
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		statusCode = http.StatusConflict
	case errors.As(err, &validErr):
		statusCode = http.StatusBadRequest
	default:
		statusCode = http.StatusInternalServerError
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("order request failed")
	}
	http.Error(w, err.Error(), statusCode)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
