package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spivanka/spivanka/internal/modules/model"
	"github.com/spivanka/spivanka/internal/modules/repo"
	"github.com/spivanka/spivanka/internal/modules/serializer"
	"github.com/spivanka/spivanka/internal/modules/service"
	"gorm.io/gorm"
)

// AdminHandler serves the back-office CRUD endpoints.
type AdminHandler struct {
	svc service.AdminService
}

func NewAdminHandler(svc service.AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type CreatePromoReq struct {
	DiscountPercent int        `json:"discount_percent" binding:"required,min=1,max=100"`
	MaxUses         int        `json:"max_uses"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

func (h *AdminHandler) CreatePromo(c *gin.Context) {
	req := CreatePromoReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	p, err := h.svc.CreatePromo(c.Request.Context(), req.DiscountPercent, req.MaxUses, req.ExpiresAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusCreated, serializer.Response{Data: p})
}

type UpdatePromoReq struct {
	DiscountPercent int        `json:"discount_percent" binding:"omitempty,min=1,max=100"`
	MaxUses         *int       `json:"max_uses"`
	Active          *bool      `json:"active"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

func (h *AdminHandler) UpdatePromo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid id", err))
		return
	}
	req := UpdatePromoReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	p := &model.PromoCode{ID: id, DiscountPercent: req.DiscountPercent, ExpiresAt: req.ExpiresAt}
	if req.MaxUses != nil {
		p.MaxUses = *req.MaxUses
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if err := h.svc.UpdatePromo(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Msg: "ok"})
}

func (h *AdminHandler) DeletePromo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid id", err))
		return
	}
	if err := h.svc.DeletePromo(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Msg: "ok"})
}

func (h *AdminHandler) ListPromos(c *gin.Context) {
	limit := 50
	items, err := h.svc.ListPromos(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

type RedeemPromoReq struct {
	Code string `json:"code" binding:"required"`
}

func (h *AdminHandler) RedeemPromo(c *gin.Context) {
	req := RedeemPromoReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	p, err := h.svc.RedeemPromo(c.Request.Context(), req.Code)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, serializer.Response{Data: p})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, serializer.NotFoundErr("promo code not found"))
	case errors.Is(err, repo.ErrPromoExhausted):
		c.JSON(http.StatusConflict, serializer.Err(http.StatusConflict, "promo code exhausted or expired", nil))
	default:
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
	}
}

type UpsertTextBlockReq struct {
	Key      string `json:"key" binding:"required"`
	Language string `json:"language"`
	Title    string `json:"title"`
	Body     string `json:"body" binding:"required"`
}

func (h *AdminHandler) UpsertTextBlock(c *gin.Context) {
	req := UpsertTextBlockReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	b := &model.TextBlock{Key: req.Key, Language: req.Language, Title: req.Title, Body: req.Body}
	if err := h.svc.UpsertTextBlock(c.Request.Context(), b); err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: b})
}

func (h *AdminHandler) DeleteTextBlock(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid id", err))
		return
	}
	if err := h.svc.DeleteTextBlock(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Msg: "ok"})
}

func (h *AdminHandler) ListTextBlocks(c *gin.Context) {
	items, err := h.svc.ListTextBlocks(c.Request.Context(), c.Query("language"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

type UpsertSettingReq struct {
	Value map[string]interface{} `json:"value" binding:"required"`
}

func (h *AdminHandler) UpsertSetting(c *gin.Context) {
	req := UpsertSettingReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	st, err := h.svc.UpsertSetting(c.Request.Context(), c.Param("key"), req.Value)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: st})
}

func (h *AdminHandler) GetSetting(c *gin.Context) {
	st, err := h.svc.GetSetting(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("setting not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: st})
}

func (h *AdminHandler) ListSettings(c *gin.Context) {
	items, err := h.svc.ListSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

type ListPaymentsReq struct {
	Status string `form:"status"`
	Limit  int    `form:"limit,default=50"`
	Cursor string `form:"cursor"`
}

func (h *AdminHandler) ListPayments(c *gin.Context) {
	req := ListPaymentsReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	items, next, err := h.svc.ListPayments(c.Request.Context(), req.Status, req.Limit, req.Cursor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: gin.H{"items": items, "next_cursor": next}})
}

type UpdatePaymentReq struct {
	Status      string `json:"status" binding:"required"`
	ProviderRef string `json:"provider_ref"`
}

func (h *AdminHandler) UpdatePayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid id", err))
		return
	}
	req := UpdatePaymentReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	if err := h.svc.UpdatePaymentStatus(c.Request.Context(), id, req.Status, req.ProviderRef); err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Msg: "ok"})
}
