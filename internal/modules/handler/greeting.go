package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spivanka/spivanka/internal/modules/serializer"
	"github.com/spivanka/spivanka/internal/modules/service"
)

type GreetingHandler struct {
	svc service.GreetingService
}

func NewGreetingHandler(svc service.GreetingService) *GreetingHandler {
	return &GreetingHandler{svc: svc}
}

type ListGreetingsReq struct {
	UserEmail string `form:"user_email"`
	Limit     int    `form:"limit,default=20"`
	Cursor    string `form:"cursor"`
	TimeDesc  bool   `form:"time_desc,default=true"`
}

// List godoc
//
//	@Summary	List finalized greetings
//	@Tags		greeting
//	@Produce	json
//	@Success	200	{object}	serializer.Response{data=service.ListGreetingsOutput}
//	@Router		/greeting [get]
func (h *GreetingHandler) List(c *gin.Context) {
	req := ListGreetingsReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	out, err := h.svc.List(c.Request.Context(), service.ListGreetingsInput{
		UserEmail: req.UserEmail,
		Limit:     req.Limit,
		Cursor:    req.Cursor,
		TimeDesc:  req.TimeDesc,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// GetByTaskID returns the finalized greeting for a task, if any.
func (h *GreetingHandler) GetByTaskID(c *gin.Context) {
	g, err := h.svc.GetByTaskID(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	if g == nil {
		c.JSON(http.StatusNotFound, serializer.NotFoundErr("greeting not found"))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: g})
}
