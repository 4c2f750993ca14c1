package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/sweetpotato0/raggate/errors"
)

// renderError writes the error envelope {error:{message, code, details?}}.
// The wrapped cause is exposed only outside production.
func (s *Server) renderError(c *gin.Context, err error) {
	e := errors.AsError(err)
	status := errors.HTTPStatus(e.Code)

	body := gin.H{
		"message": e.Message,
		"code":    string(e.Code),
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	if !s.cfg.IsProduction() && e.Err != nil {
		body["cause"] = e.Err.Error()
	}

	if status >= 500 {
		s.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("code", string(e.Code)),
			slog.String("error", e.Error()))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
