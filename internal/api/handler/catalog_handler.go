package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/mobilia/admin-gateway/internal/api/metrics"
	"github.com/mobilia/admin-gateway/internal/core/domain"
	"github.com/mobilia/admin-gateway/internal/core/ports"
)

// CatalogFetcher reads one catalog resource collection from the upstream API.
type CatalogFetcher interface {
	Catalog(ctx context.Context, token, resource string, query url.Values) (json.RawMessage, error)
}

// catalogResources is the whitelist of collections the admin screens browse.
var catalogResources = map[string]struct{}{
	"products":        {},
	"categories":      {},
	"materials":       {},
	"certifications":  {},
	"properties":      {},
	"property-values": {},
	"product-files":   {},
	"reports":         {},
}

// CatalogHandler proxies catalog reads for the admin screens through the
// session's bearer token, with the one-shot auth retry policy applied.
type CatalogHandler struct {
	controller ports.AuthController
	catalog    CatalogFetcher
}

func NewCatalogHandler(controller ports.AuthController, catalog CatalogFetcher) *CatalogHandler {
	return &CatalogHandler{controller: controller, catalog: catalog}
}

type catalogResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// List fetches one whitelisted catalog collection.
//
// @Summary      List a catalog resource
// @Tags         catalog
// @Produce      json
// @Param        resource  path      string  true  "Resource collection name"
// @Success      200       {object}  catalogResponse
// @Failure      401       {object}  map[string]string
// @Failure      404       {object}  map[string]string
// @Failure      503       {object}  map[string]string
// @Router       /admin/catalog/{resource} [get]
func (h *CatalogHandler) List(c echo.Context) error {
	sid, err := guardedSessionID(c)
	if err != nil {
		return err
	}

	resource := c.Param("resource")
	if _, ok := catalogResources[resource]; !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown catalog resource")
	}

	var payload json.RawMessage
	err = h.controller.ExecuteWithAuthRetry(c.Request().Context(), sid, func(ctx context.Context, token string) error {
		raw, callErr := h.catalog.Catalog(ctx, token, resource, c.QueryParams())
		payload = raw
		return callErr
	}, 1)
	if err != nil {
		if errors.Is(err, domain.ErrReauthRequired) || errors.Is(err, domain.ErrUnauthorized) {
			metrics.ReauthForcedTotal.Inc()
		}
		return err
	}

	return c.JSON(http.StatusOK, catalogResponse{Success: true, Data: payload})
}
