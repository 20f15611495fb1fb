package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spivanka/spivanka/internal/modules/model"
	"github.com/spivanka/spivanka/internal/modules/serializer"
	"github.com/spivanka/spivanka/internal/modules/service"
	"github.com/spivanka/spivanka/internal/pkg/normalizer"
	"github.com/spivanka/spivanka/internal/pkg/stream"
	"github.com/spivanka/spivanka/pkg/genstatus"
)

type GenerationHandler struct {
	svc service.GenerationService
	hub *stream.Hub
}

func NewGenerationHandler(svc service.GenerationService, hub *stream.Hub) *GenerationHandler {
	return &GenerationHandler{svc: svc, hub: hub}
}

type SubmitGenerationReq struct {
	Recipient    string `json:"recipient" binding:"required"`
	Occasion     string `json:"occasion" binding:"required"`
	Relationship string `json:"relationship"`
	Style        string `json:"style"`
	Mood         string `json:"mood"`
	Language     string `json:"language"`
	VoiceType    string `json:"voice_type"`
	Plan         string `json:"plan"`
	UserEmail    string `json:"user_email"`
}

// Submit godoc
//
//	@Summary		Submit a song generation request
//	@Tags			generation
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.SubmitGenerationReq	true	"Generation request"
//	@Success		201	{object}	serializer.Response{data=model.GenerationTask}
//	@Router			/generation [post]
func (h *GenerationHandler) Submit(c *gin.Context) {
	req := SubmitGenerationReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	task, err := h.svc.Submit(c.Request.Context(), service.SubmitInput{
		Form: model.FormData{
			Recipient:    req.Recipient,
			Occasion:     req.Occasion,
			Relationship: req.Relationship,
			Style:        req.Style,
			Mood:         req.Mood,
			Language:     req.Language,
			VoiceType:    req.VoiceType,
		},
		Plan:      req.Plan,
		UserEmail: req.UserEmail,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, serializer.Err(http.StatusBadGateway, "generation submit failed", err))
		return
	}

	c.JSON(http.StatusCreated, serializer.Response{Data: task})
}

// GetStatus godoc
//
//	@Summary		Current status of a generation task
//	@Tags			generation
//	@Produce		json
//	@Param			task_id	path	string	true	"Task ID"
//	@Success		200	{object}	serializer.Response{data=model.GenerationTask}
//	@Router			/generation/{task_id} [get]
func (h *GenerationHandler) GetStatus(c *gin.Context) {
	task, err := h.svc.GetTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, serializer.NotFoundErr("task not found"))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: task})
}

type UpdateTextReq struct {
	Text string `json:"text" binding:"required"`
}

// UpdateText lets the user edit the lyric before audio generation begins.
func (h *GenerationHandler) UpdateText(c *gin.Context) {
	req := UpdateTextReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	err := h.svc.UpdateText(c.Request.Context(), c.Param("task_id"), req.Text)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, serializer.Response{Msg: "ok"})
	case errors.Is(err, service.ErrTextLocked):
		c.JSON(http.StatusConflict, serializer.Err(http.StatusConflict, err.Error(), nil))
	default:
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
	}
}

// Retry resubmits a terminally failed task under a fresh provider task id.
func (h *GenerationHandler) Retry(c *gin.Context) {
	task, err := h.svc.Retry(c.Request.Context(), c.Param("task_id"))
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, serializer.Response{Data: task})
	case errors.Is(err, service.ErrNotRetriable):
		c.JSON(http.StatusConflict, serializer.Err(http.StatusConflict, err.Error(), nil))
	default:
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
	}
}

// Stream godoc
//
//	@Summary		Live status updates for a task (SSE)
//	@Description	Emits status_update events and one terminal event, then closes.
//	@Tags			generation
//	@Produce		text/event-stream
//	@Param			task_id	path	string	true	"Task ID"
//	@Router			/generation/{task_id}/stream [get]
func (h *GenerationHandler) Stream(c *gin.Context) {
	taskID := c.Param("task_id")

	// subscribe before reading the store; a terminal event published in
	// between would otherwise close out the task with no one listening
	ch, cancel := h.hub.Subscribe(taskID)
	defer cancel()

	task, err := h.svc.GetTask(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, serializer.NotFoundErr("task not found"))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	status := genstatus.Status(task.Status)
	if status.Terminal() {
		// the store already holds the final state; no live events to wait for
		c.SSEvent("message", terminalEvent(task, status))
		c.Writer.Flush()
		return
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", ev)
			return !ev.Terminal()
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func terminalEvent(task *model.GenerationTask, status genstatus.Status) stream.Event {
	typ := stream.EventFailed
	if status == genstatus.Success {
		typ = stream.EventComplete
	}
	return stream.Event{
		Type:   typ,
		TaskID: task.TaskID,
		Status: status,
		Data: &normalizer.Snapshot{
			TaskID:         task.TaskID,
			Status:         status,
			Text:           task.Text,
			MusicURL:       task.MusicURL,
			SecondMusicURL: task.SecondMusicURL,
			CoverURL:       task.CoverURL,
		},
	}
}
