package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nimasrn/finance-tracker/internal/model"
	xhttp "github.com/nimasrn/finance-tracker/pkg/http"
	"github.com/nimasrn/finance-tracker/pkg/logger"
)

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to encode response", "path", string(ctx.Path()), "error", err)
		ctx.Response.SetStatusCode(xhttp.StatusInternalServerError)
		return
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// internalError logs err and answers with a generic 500.
func internalError(ctx *xhttp.RequestCtx, err error) {
	logger.Error("request failed", "method", string(ctx.Method()), "path", string(ctx.Path()), "error", err)
	writeError(ctx, xhttp.StatusInternalServerError, "internal server error")
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func pathParam(ctx *xhttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	return strconv.ParseInt(pathParam(ctx, name), 10, 64)
}

// monthParam reads the required month query parameter.
func monthParam(ctx *xhttp.RequestCtx) (model.Month, error) {
	v := query(ctx, "month")
	m, err := model.ParseMonth(v)
	if err != nil {
		return model.Month{}, fmt.Errorf("invalid month %q, expected YYYY-MM", v)
	}
	return m, nil
}
