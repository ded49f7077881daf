package tool

import (
	"maps"

	"github.com/gin-gonic/gin"
)

func FastReturnError(msg string) gin.H {
	return gin.H{
		"error": msg,
	}
}

// FastReturnErrorKind builds the gateway error body {"error", "kind", ...details}.
// Details never override error or kind.
func FastReturnErrorKind(msg, kind string, details map[string]any) gin.H {
	resp := make(gin.H, len(details)+2)
	maps.Copy(resp, details)
	resp["error"] = msg
	resp["kind"] = kind
	return resp
}

func FastReturnSuccessWithData(data any) gin.H {
	return gin.H{
		"data": data,
	}
}
