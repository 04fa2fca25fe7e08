// Package handler holds the helpers shared by the per-resource HTTP handlers.
// Failures are attached with c.Error and rendered by middleware.ErrorHandler.
package handler

import (
	stderrors "errors"
	"fmt"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

// ParamID parses a positive integer path parameter.
func ParamID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(errors.BadRequest(fmt.Sprintf("invalid %s %q", name, raw), err))
		return 0, false
	}
	return id, true
}

// BindJSON decodes and validates the request body into req.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(errors.BadRequest("invalid request body", err))
		return false
	}
	return true
}

// BindOptionalJSON is BindJSON for endpoints whose body may be omitted. An
// empty body leaves req untouched whatever the transfer encoding.
func BindOptionalJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !stderrors.Is(err, io.EOF) {
		_ = c.Error(errors.BadRequest("invalid request body", err))
		return false
	}
	return true
}

// BindQuery decodes query parameters into req.
func BindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		_ = c.Error(errors.BadRequest("invalid query parameters", err))
		return false
	}
	return true
}

// Fail attaches err to the request for the error middleware.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
}
