package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/moyoez/scangate/coordinator"
	"github.com/moyoez/scangate/tool"
)

const (
	defaultQRSize = 200
	maxQRSize     = 512
)

// HandleResultQR returns a PNG QR code of the scan result link of a completed upload.
// GET /api/upload/v1/result-qr?sessionId=&size=200x200
func (ctrl *UploadController) HandleResultQR(c *gin.Context) {
	sessionId := strings.TrimSpace(c.Query("sessionId"))
	if sessionId == "" {
		c.JSON(http.StatusBadRequest, validationBody("Missing required parameter: sessionId"))
		return
	}
	result, ok := ctrl.service.Result(sessionId)
	if !ok {
		c.JSON(http.StatusNotFound, tool.FastReturnErrorKind("No completed upload for session "+sessionId, string(coordinator.KindSessionNotFound), nil))
		return
	}
	if result.ResultUrl == "" {
		c.JSON(http.StatusConflict, tool.FastReturnErrorKind("Backend returned no result link", string(coordinator.KindInvalidState), nil))
		return
	}

	size := parseSize(c.Query("size"))
	if size <= 0 {
		size = defaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}

	png, err := qrcode.Encode(result.ResultUrl, qrcode.Medium, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to encode QR code: "+err.Error()))
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// parseSize parses size from "200x200" or "200" and returns the pixel dimension.
func parseSize(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if idx := strings.Index(s, "x"); idx > 0 {
		s = strings.TrimSpace(s[:idx])
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
