package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/craftpage/mediavault/internal/ingest"
	"github.com/craftpage/mediavault/internal/logger"
	"github.com/craftpage/mediavault/internal/media"
	"github.com/craftpage/mediavault/internal/reconcile"
	"github.com/craftpage/mediavault/internal/store"
	"github.com/craftpage/mediavault/internal/sweeper"
)

// AssetsHandler exposes ingestion, browsing, retrieval, and housekeeping of
// media assets.
type AssetsHandler struct {
	pipeline   *ingest.Pipeline
	store      *store.TieredStore
	reconciler *reconcile.Reconciler
	sweeper    *sweeper.Sweeper
	maxUpload  int64
	logger     *slog.Logger
}

func NewAssetsHandler(log *slog.Logger, pipeline *ingest.Pipeline, s *store.TieredStore, reconciler *reconcile.Reconciler, sw *sweeper.Sweeper, maxUpload int64) *AssetsHandler {
	return &AssetsHandler{
		pipeline:   pipeline,
		store:      s,
		reconciler: reconciler,
		sweeper:    sw,
		maxUpload:  maxUpload,
		logger:     log.With(slog.String("handler", "assets")),
	}
}

func (h *AssetsHandler) Register(e *echo.Echo) {
	group := e.Group("/assets")
	group.POST("", h.Ingest)
	group.GET("", h.List)
	group.GET("/pick", h.Pick)
	group.GET("/export", h.Export)
	group.POST("/import", h.Import)
	group.POST("/sweep", h.Sweep)
	group.GET("/:id", h.Get)
	group.GET("/:id/content", h.Content)
	group.PATCH("/:id", h.Rename)
	group.DELETE("/:id", h.Delete)
}

// IngestResponse pairs the per-file outcomes with the refreshed gallery.
type IngestResponse struct {
	Batch  ingest.BatchResult `json:"batch"`
	Assets []media.Asset      `json:"assets"`
}

// Ingest accepts a multipart batch under the "files" field and runs the
// pipeline over it. The optional "kinds" form value restricts accepted
// kinds (comma-separated).
func (h *AssetsHandler) Ingest(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one file is required")
	}

	allowed, err := parseKinds(c.FormValue("kinds"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	maxSize := h.maxUpload
	if raw := c.QueryParam("max_size"); raw != "" {
		requested, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || requested <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid max_size")
		}
		// A caller may tighten the limit, never widen it.
		if h.maxUpload <= 0 || requested < h.maxUpload {
			maxSize = requested
		}
	}

	files := make([]ingest.File, 0, len(headers))
	for _, header := range headers {
		src, err := header.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("open %s: %v", header.Filename, err))
		}
		payload, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read %s: %v", header.Filename, err))
		}
		files = append(files, ingest.File{
			Name:        header.Filename,
			ContentType: header.Header.Get(echo.HeaderContentType),
			Payload:     payload,
		})
	}

	batch := h.pipeline.Run(c.Request().Context(), files, ingest.Options{
		MaxFileSize:  maxSize,
		AllowedKinds: allowed,
	})

	assets, err := h.store.ListAll(c.Request().Context(), "")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, IngestResponse{Batch: batch, Assets: assets})
}

// List returns all index entries, optionally filtered by ?kind=.
func (h *AssetsHandler) List(c echo.Context) error {
	kind, err := parseKind(c.QueryParam("kind"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	assets, err := h.store.ListAll(c.Request().Context(), kind)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if assets == nil {
		assets = []media.Asset{}
	}
	return c.JSON(http.StatusOK, assets)
}

// PickResponse is one chosen asset with a ready-to-render reference.
type PickResponse struct {
	Asset  media.Asset      `json:"asset"`
	Ref    string           `json:"ref"`
	Source reconcile.Source `json:"source"`
}

// Pick returns the newest asset among ?kinds= with its resolved reference,
// or 404 when no asset of those kinds exists.
func (h *AssetsHandler) Pick(c echo.Context) error {
	kinds, err := parseKinds(c.QueryParam("kinds"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.reconciler.Pick(c.Request().Context(), kinds)
	if err != nil {
		if errors.Is(err, store.ErrAssetNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no assets available")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, PickResponse{Asset: res.Asset, Ref: res.Ref, Source: res.Source})
}

// Get returns one index entry.
func (h *AssetsHandler) Get(c echo.Context) error {
	asset, err := h.store.Read(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrAssetNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "asset not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, asset)
}

// Content streams the best available representation of an asset's bytes.
// The X-Content-Source header reports which tier satisfied the request.
func (h *AssetsHandler) Content(c echo.Context) error {
	res, err := h.reconciler.Resolve(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrAssetNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "asset not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	c.Response().Header().Set("X-Content-Source", string(res.Source))
	if res.Payload != nil {
		return c.Blob(http.StatusOK, res.Mime, res.Payload)
	}
	if res.Ref == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no content available")
	}
	payload, err := media.DecodeDataURL(res.Ref)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "undecodable reference")
	}
	return c.Blob(http.StatusOK, media.MimeOfDataURL(res.Ref), payload)
}

// RenameRequest is the PATCH body for renaming an asset.
type RenameRequest struct {
	DisplayName string `json:"display_name"`
}

// Rename updates an asset's display name.
func (h *AssetsHandler) Rename(c echo.Context) error {
	var req RenameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "display_name is required")
	}
	if err := h.store.Rename(c.Request().Context(), c.Param("id"), req.DisplayName); err != nil {
		if errors.Is(err, store.ErrAssetNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "asset not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	asset, err := h.store.Read(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, asset)
}

// Delete removes an asset from both tiers.
func (h *AssetsHandler) Delete(c echo.Context) error {
	if err := h.store.Delete(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, store.ErrAssetNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "asset not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Export serves a portable backup of the metadata index.
func (h *AssetsHandler) Export(c echo.Context) error {
	doc, err := h.store.ExportAll(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="assets-export.json"`)
	return c.JSON(http.StatusOK, doc)
}

// ImportResponse reports how many entries an import loaded.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// Import loads a previously exported document.
func (h *AssetsHandler) Import(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	imported, err := h.store.ImportAll(c.Request().Context(), raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, ImportResponse{Imported: imported})
}

// Sweep triggers an on-demand cleanup run and returns its report.
func (h *AssetsHandler) Sweep(c echo.Context) error {
	ctx := c.Request().Context()
	report, err := h.sweeper.Run(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	logger.FromContext(ctx).Info("sweep ran",
		slog.Int("scanned", report.Scanned),
		slog.Int("removed", report.Removed))
	return c.JSON(http.StatusOK, report)
}

func parseKind(raw string) (media.Kind, error) {
	switch media.Kind(strings.TrimSpace(strings.ToLower(raw))) {
	case "":
		return "", nil
	case media.KindImage:
		return media.KindImage, nil
	case media.KindAudio:
		return media.KindAudio, nil
	case media.KindVideo:
		return media.KindVideo, nil
	default:
		return "", fmt.Errorf("unknown kind %q", raw)
	}
}

func parseKinds(raw string) ([]media.Kind, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var kinds []media.Kind
	for _, part := range strings.Split(raw, ",") {
		kind, err := parseKind(part)
		if err != nil {
			return nil, err
		}
		if kind != "" {
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}
