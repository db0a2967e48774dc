package handlers

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	xhttp "github.com/hitchly/engagement-tracker/pkg/http"
)

// newRequestCtx builds a request the way the router would hand it to a
// handler; path parameters go in via SetUserValue.
func newRequestCtx(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := new(xhttp.RequestCtx)
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.Header.SetContentType("application/json")
		ctx.Request.SetBody(body)
	}
	return ctx
}

func newFormRequestCtx(method, path string, params map[string]string) *xhttp.RequestCtx {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	ctx := new(xhttp.RequestCtx)
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	ctx.Request.Header.SetContentType("application/x-www-form-urlencoded")
	ctx.Request.SetBodyString(form.Encode())
	return ctx
}

func decodeBody(t *testing.T, ctx *xhttp.RequestCtx, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), dst))
}
