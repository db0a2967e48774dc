package handlers

import (
	"errors"

	"github.com/fasthttp/router"
	"github.com/hitchly/engagement-tracker/internal/model"
	"github.com/hitchly/engagement-tracker/internal/pagecache"
	xhttp "github.com/hitchly/engagement-tracker/pkg/http"
)

// PageCacheHandler exposes the tenant snapshot store. The guest-facing read
// path owns the fill-on-miss discipline: on a 404 it rebuilds the snapshot
// from authoritative storage and PUTs it back. Mutation collaborators call
// the invalidate route after any tenant-wide configuration write.
type PageCacheHandler struct {
	reader      pagecache.SnapshotReader
	writer      pagecache.SnapshotWriter
	invalidator pagecache.Invalidator
}

func RegisterPageCacheRoutes(e *router.Group, h *PageCacheHandler) {
	e.GET("/tenants/{tenant_id}/page", h.GetSnapshot)
	e.PUT("/tenants/{tenant_id}/page", h.PutSnapshot)
	e.POST("/tenants/{tenant_id}/page/invalidate", h.InvalidateSnapshot)
}

func NewPageCacheHandler(reader pagecache.SnapshotReader, writer pagecache.SnapshotWriter, invalidator pagecache.Invalidator) *PageCacheHandler {
	return &PageCacheHandler{
		reader:      reader,
		writer:      writer,
		invalidator: invalidator,
	}
}

func (h *PageCacheHandler) GetSnapshot(ctx *xhttp.RequestCtx) {
	tenantID, err := pathInt64(ctx, "tenant_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid tenant_id")
		return
	}

	snap, err := h.reader.Get(tenantID)
	if err != nil {
		if errors.Is(err, pagecache.ErrMiss) {
			writeError(ctx, xhttp.StatusNotFound, "no cached snapshot")
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, snap)
}

func (h *PageCacheHandler) PutSnapshot(ctx *xhttp.RequestCtx) {
	tenantID, err := pathInt64(ctx, "tenant_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid tenant_id")
		return
	}

	var snap model.TenantSnapshot
	if err := readJSON(ctx, &snap); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	snap.TenantID = tenantID

	if err := h.writer.Put(tenantID, &snap); err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, snap)
}

func (h *PageCacheHandler) InvalidateSnapshot(ctx *xhttp.RequestCtx) {
	tenantID, err := pathInt64(ctx, "tenant_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid tenant_id")
		return
	}

	if err := h.invalidator.Invalidate(tenantID); err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "invalidated"})
}
