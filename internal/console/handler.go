// Package console 设备 SDK 的 HTTP 检查控制台：查看流状态、
// 开关推流、按超时拉取事件、调整日志消息最低级别。
package console

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdk/pkg/datablob"
	"github.com/taoyao-code/iot-sdk/pkg/message"
	"github.com/taoyao-code/iot-sdk/pkg/sdk"
	"github.com/taoyao-code/iot-sdk/pkg/stream"
)

// MaxWait 单次拉取允许的最长等待
const MaxWait = 5 * time.Second

// Handler 控制台处理器
type Handler struct {
	api    *sdk.API
	logger *zap.Logger
}

// NewHandler 创建控制台处理器
func NewHandler(api *sdk.API, logger *zap.Logger) *Handler {
	return &Handler{api: api, logger: logger}
}

// StreamInfo 流状态
type StreamInfo struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Kind    string  `json:"kind"`
	Source  string  `json:"source,omitempty"`
	State   string  `json:"state"`
	Mode    string  `json:"mode"`
	Pending int     `json:"pending"`
	Rate    float64 `json:"rate,omitempty"`
}

// BlobView 数据块的 JSON 表示
type BlobView struct {
	Time time.Time `json:"time"`
	Sec  int64     `json:"sec"`
	Usec int64     `json:"usec"`
	Size int       `json:"size"`
	Data []byte    `json:"data"`
}

// MessageView 日志消息的 JSON 表示
type MessageView struct {
	Time  time.Time     `json:"time"`
	Level message.Level `json:"level"`
	Value string        `json:"value"`
}

func blobView(b *datablob.DataBlob) BlobView {
	sec, usec := b.Timeval()
	return BlobView{Time: b.Time(), Sec: sec, Usec: usec, Size: b.Size(), Data: b.Data()}
}

func messageView(m *message.Message) MessageView {
	return MessageView{Time: m.Time(), Level: m.Level(), Value: m.Value()}
}

// Info SDK 信息
// @Summary SDK 信息
// @Tags 控制台
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/info [get]
func (h *Handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":     h.api.Version().String(),
		"user":        h.api.User(),
		"verbosity":   h.api.Verbosity(),
		"system_time": h.api.CurrentSystemTime(),
	})
}

// SetVerbosity 调整详细程度
// @Summary 调整详细程度
// @Tags 控制台
// @Accept json
// @Produce json
// @Param body body object true "{\"verbosity\": 150}"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/verbosity [put]
func (h *Handler) SetVerbosity(c *gin.Context) {
	var req struct {
		Verbosity *uint16 `json:"verbosity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.api.SetVerbosity(*req.Verbosity); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verbosity": h.api.Verbosity()})
}

// ListSources 可用数据块源
// @Summary 可用数据块源
// @Tags 数据块
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/sources [get]
func (h *Handler) ListSources(c *gin.Context) {
	descs, err := h.api.AvailableDataBlobSources()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": descs})
}

// ListStreams 所有打开的流
// @Summary 打开的流
// @Tags 控制台
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/streams [get]
func (h *Handler) ListStreams(c *gin.Context) {
	mc := h.api.Messages().Controller()
	streams := []StreamInfo{{
		ID:      mc.ID(),
		Name:    mc.Name(),
		Kind:    "messages",
		State:   mc.State().String(),
		Mode:    string(mc.Mode()),
		Pending: mc.Pending(),
	}}
	for _, s := range h.api.Sources() {
		streams = append(streams, sourceInfo(s))
	}
	c.JSON(http.StatusOK, gin.H{"streams": streams})
}

func sourceInfo(s *datablob.Source) StreamInfo {
	ctrl := s.Controller()
	return StreamInfo{
		ID:      ctrl.ID(),
		Name:    s.StreamName(),
		Kind:    "blobs",
		Source:  s.Info().Name,
		State:   ctrl.State().String(),
		Mode:    string(ctrl.Mode()),
		Pending: ctrl.Pending(),
		Rate:    s.Properties().Rate,
	}
}

// OpenBlobSource 打开数据块源
// @Summary 打开数据块源
// @Description 名称为空时打开第一个源；rate 为空时使用默认速率
// @Tags 数据块
// @Accept json
// @Produce json
// @Param body body object true "{\"name\": \"\", \"rate\": 30}"
// @Success 201 {object} StreamInfo
// @Router /api/v1/blobs [post]
func (h *Handler) OpenBlobSource(c *gin.Context) {
	var req struct {
		Name string   `json:"name"`
		Rate *float64 `json:"rate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	props := datablob.DefaultStreamProperties()
	if req.Rate != nil {
		props.Rate = *req.Rate
	}
	s, err := h.api.OpenDataBlobSource(props, req.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sourceInfo(s))
}

func (h *Handler) lookup(c *gin.Context) (*datablob.Source, bool) {
	id := c.Param("id")
	for _, s := range h.api.Sources() {
		if s.Controller().ID() == id {
			return s, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "data blob source not found"})
	return nil, false
}

type streamingRequest struct {
	Running *bool `json:"running" binding:"required"`
}

// SetBlobStreaming 开关数据块推流
// @Summary 开关数据块推流
// @Tags 数据块
// @Accept json
// @Produce json
// @Param id path string true "流 ID"
// @Param body body object true "{\"running\": true}"
// @Success 200 {object} StreamInfo
// @Router /api/v1/blobs/{id}/streaming [put]
func (h *Handler) SetBlobStreaming(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req streamingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := s.SetStreamingState(*req.Running); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sourceInfo(s))
}

// NextBlob 拉取下一个数据块
// @Summary 拉取下一个数据块
// @Description 最多等待 timeout（如 500ms，上限 5s）；超时返回 204
// @Tags 数据块
// @Produce json
// @Param id path string true "流 ID"
// @Param timeout query string false "等待时长"
// @Success 200 {object} BlobView
// @Success 204 "超时"
// @Router /api/v1/blobs/{id}/next [get]
func (h *Handler) NextBlob(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	timeout, ok := parseTimeout(c)
	if !ok {
		return
	}
	b, got, err := s.GetNextBlob(timeout)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !got {
		c.Status(http.StatusNoContent)
		return
	}
	view := blobView(b)
	b.Release()
	c.JSON(http.StatusOK, view)
}

// CloseBlobSource 关闭数据块源
// @Summary 关闭数据块源
// @Tags 数据块
// @Param id path string true "流 ID"
// @Success 204
// @Router /api/v1/blobs/{id} [delete]
func (h *Handler) CloseBlobSource(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := s.Close(); err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.Info("data blob source closed", zap.String("stream", s.StreamName()))
	c.Status(http.StatusNoContent)
}

// SetMessageStreaming 开关日志消息
// @Summary 开关日志消息
// @Tags 日志消息
// @Accept json
// @Param body body object true "{\"running\": true}"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/messages/streaming [put]
func (h *Handler) SetMessageStreaming(c *gin.Context) {
	var req streamingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.api.SetLogMessageStreamingState(*req.Running); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": *req.Running})
}

// NextMessage 拉取下一条日志消息
// @Summary 拉取下一条日志消息
// @Tags 日志消息
// @Produce json
// @Param timeout query string false "等待时长"
// @Success 200 {object} MessageView
// @Success 204 "超时"
// @Router /api/v1/messages/next [get]
func (h *Handler) NextMessage(c *gin.Context) {
	timeout, ok := parseTimeout(c)
	if !ok {
		return
	}
	m, got, err := h.api.GetNextLogMessage(timeout)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !got {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, messageView(m))
}

// PendingMessages 取出排队的日志消息
// @Summary 取出排队的日志消息
// @Tags 日志消息
// @Produce json
// @Param max query int false "最多条数（0 为全部）"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/messages/pending [get]
func (h *Handler) PendingMessages(c *gin.Context) {
	limit := 0
	if v := c.Query("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max"})
			return
		}
		limit = n
	}
	msgs, err := h.api.GetPendingLogMessages(limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageView(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// SetMessageLevel 设置日志消息最低级别
// @Summary 设置日志消息最低级别
// @Tags 日志消息
// @Accept json
// @Param body body object true "{\"level\": \"warning\"}"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/messages/level [put]
func (h *Handler) SetMessageLevel(c *gin.Context) {
	var req struct {
		Level string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	level, err := message.ParseLevel(req.Level)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.api.SetLogMessageMinimumLevel(level); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"level": level})
}

func parseTimeout(c *gin.Context) (time.Duration, bool) {
	v := c.Query("timeout")
	if v == "" {
		return 0, true
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeout"})
		return 0, false
	}
	if d > MaxWait {
		d = MaxWait
	}
	return d, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, stream.ErrInvalidConfiguration):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, stream.ErrInvalidHandle):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		h.logger.Error("console request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
