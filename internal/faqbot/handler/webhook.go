package handler

import (
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/faqbot/internal/faqbot/biz"
)

// twimlResponse is the XML reply body expected by the WhatsApp gateway.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// WebhookHandler handles inbound WhatsApp messages.
type WebhookHandler struct {
	service biz.Service
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(service biz.Service) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// HandleMessage processes one inbound message and replies with TwiML.
// 网关按 HTTP 状态码判断投递结果，任何内部错误都以 200 + 道歉话术返回。
func (h *WebhookHandler) HandleMessage(c *gin.Context) {
	businessID := c.Param("business_id")

	msg := &biz.InboundMessage{
		UserKey:    c.PostForm("From"),
		BusinessID: businessID,
		Body:       c.PostForm("Body"),
	}

	// NumMedia > 0 时为语音消息，取第一个媒体地址
	if numMedia, err := strconv.Atoi(c.PostForm("NumMedia")); err == nil && numMedia > 0 {
		mediaURL := c.PostForm("MediaUrl0")
		contentType := c.PostForm("MediaContentType0")
		if mediaURL != "" && strings.HasPrefix(contentType, "audio/") {
			msg.MediaURL = mediaURL
		}
	}

	reply := h.service.HandleMessage(c.Request.Context(), msg)
	writeTwiML(c, reply)
}

// writeTwiML writes a TwiML message response with HTTP 200.
func writeTwiML(c *gin.Context, message string) {
	body, err := xml.Marshal(twimlResponse{Message: message})
	if err != nil {
		logger.Errorw("failed to marshal twiml response", "error", err.Error())
		body = []byte("<Response><Message>" + biz.FallbackInternal + "</Message></Response>")
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", append([]byte(xml.Header), body...))
}
