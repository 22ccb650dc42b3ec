package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"storefront/internal/pkg/auth"
	"storefront/internal/pkg/logger"
	"storefront/internal/service/promotion/application"
	"storefront/internal/service/promotion/domain"
)

// PromotionHandler 封装了 promotion 服务的 HTTP 处理器
type PromotionHandler struct {
	service *application.PromotionService
}

func NewPromotionHandler(service *application.PromotionService) *PromotionHandler {
	return &PromotionHandler{service: service}
}

// RegisterRoutes 注册公开路由，limiter 为 nil 时不限流
func (h *PromotionHandler) RegisterRoutes(r chi.Router, limiter func(http.Handler) http.Handler) {
	if limiter != nil {
		r.With(limiter).Post("/coupons/validate", h.handleValidate)
		return
	}
	r.Post("/coupons/validate", h.handleValidate)
}

// RegisterAdminRoutes 挂载在已做角色校验的 /admin 路由组下
func (h *PromotionHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/coupons", h.handleCreate)
	r.Get("/coupons/{id}", h.handleGet)
	r.Patch("/coupons/{id}", h.handleUpdate)
}

func (h *PromotionHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req application.ValidateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var userID string
	if u := auth.UserFromContext(r.Context()); u != nil {
		userID = u.ID
	}

	resp, err := h.service.ValidateCoupon(r.Context(), &req, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PromotionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req application.CreateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := h.service.CreateCoupon(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *PromotionHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid coupon id", http.StatusBadRequest)
		return
	}
	resp, err := h.service.GetCoupon(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PromotionHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid coupon id", http.StatusBadRequest)
		return
	}
	var p domain.CouponPatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := h.service.UpdateCoupon(r.Context(), id, p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeError 根据错误类型返回不同的 HTTP 状态码
func (h *PromotionHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrCouponNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, application.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidCoupon):
		statusCode = http.StatusBadRequest
	case errors.Is(err, domain.ErrCouponCodeTaken):
		statusCode = http.StatusConflict
	default:
		statusCode = http.StatusInternalServerError
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("promotion request failed")
	}
	http.Error(w, err.Error(), statusCode)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
