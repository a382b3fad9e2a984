package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	xhttp "github.com/nimasrn/finance-tracker/pkg/http"
	"github.com/nimasrn/finance-tracker/pkg/logger"
)

const healthTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	deps map[string]Pinger
}

// RegisterHealthRoutes mounts /health on the root router, outside /api.
func RegisterHealthRoutes(r *router.Router, h *HealthHandler) {
	r.GET("/health", h.GetHealth)
}

// NewHealthHandler checks every named dependency on each request.
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		deps: deps,
	}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	c, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	for name, dep := range h.deps {
		if err := dep.Ping(c); err != nil {
			logger.Warn("health check failed", "dependency", name, "error", err)
			writeError(ctx, xhttp.StatusServiceUnavailable, name+" unavailable")
			return
		}
	}
	ctx.Response.SetBodyString("success")
}
