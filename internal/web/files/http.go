// Package files exposes the file service over HTTP.
package files

import (
	"context"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/laisky-chart-files/internal/files/dataset"
	"github.com/Laisky/laisky-chart-files/internal/files/model"
	"github.com/Laisky/laisky-chart-files/internal/files/service"
	"github.com/Laisky/laisky-chart-files/library/auth"
)

// multipart framing allowed on top of the file itself
const formOverheadBytes = 1 << 20

// Handler serves the file routes. It only resolves the caller and maps
// errors; every ownership decision is made by the service.
type Handler struct {
	svc     *service.Service
	timeout time.Duration
}

// NewHandler creates a handler over svc.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc, timeout: svc.Settings().RequestTimeout}
}

// Register mounts the user and admin routes behind authn.
func (h *Handler) Register(r gin.IRouter, authn *auth.Authenticator) {
	api := r.Group("/api", authn.RequireSession())

	files := api.Group("/files")
	files.POST("/upload", h.upload)
	files.GET("", h.list)
	files.GET("/:id", h.get)
	files.GET("/:id/content", h.content)
	files.GET("/:id/download", h.download)
	files.DELETE("/:id", h.delete)

	admin := api.Group("/admin", authn.RequireAdmin())
	admin.GET("/users/:uid/files", h.adminList)
	admin.GET("/files/:id", h.adminGet)
	admin.GET("/files/:id/content", h.adminContent)
	admin.GET("/files/:id/download", h.adminDownload)
	admin.DELETE("/files/:id", h.adminDelete)
	admin.GET("/stats", h.adminStats)
}

func (h *Handler) withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c)
	}
	return context.WithTimeout(c, h.timeout)
}

func (h *Handler) upload(c *gin.Context) {
	maxBytes := h.svc.Settings().MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+formOverheadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(c, model.ValidationError("file is too large"))
			return
		}
		h.writeError(c, model.ValidationError("no file uploaded"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.writeError(c, model.ValidationError("cannot read uploaded file"))
		return
	}
	defer f.Close() //nolint:errcheck

	// a dropped client must not leave the pipeline half way
	desc, err := h.svc.Ingest(context.WithoutCancel(c), service.Upload{
		Payload:     f,
		Size:        fh.Size,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		OwnerID:     auth.OwnerID(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.writeFile(c, http.StatusCreated, desc)
}

func (h *Handler) list(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	descs, err := h.svc.ListFiles(ctx, auth.OwnerID(c))
	h.writeFiles(c, descs, err)
}

func (h *Handler) get(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	desc, err := h.svc.GetFile(ctx, c.Param("id"), auth.OwnerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeFile(c, http.StatusOK, desc)
}

func (h *Handler) content(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	ownerID := auth.OwnerID(c)
	desc, err := h.svc.GetFile(ctx, c.Param("id"), ownerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ds, err := h.svc.ParseContent(ctx, desc.ID.Hex(), ownerID)
	h.writeContent(c, desc, ds, err)
}

func (h *Handler) download(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	desc, rc, err := h.svc.DownloadContent(ctx, c.Param("id"), auth.OwnerID(c))
	h.stream(c, desc, rc, err)
}

func (h *Handler) delete(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	if err := h.svc.DeleteFile(ctx, c.Param("id"), auth.OwnerID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) adminList(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	descs, err := h.svc.Admin().ListOwnerFiles(ctx, c.Param("uid"))
	h.writeFiles(c, descs, err)
}

func (h *Handler) adminGet(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	desc, err := h.svc.Admin().GetFile(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeFile(c, http.StatusOK, desc)
}

func (h *Handler) adminContent(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	admin := h.svc.Admin()
	desc, err := admin.GetFile(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ds, err := admin.ParseContent(ctx, desc.ID.Hex())
	h.writeContent(c, desc, ds, err)
}

func (h *Handler) adminDownload(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	desc, rc, err := h.svc.Admin().DownloadContent(ctx, c.Param("id"))
	h.stream(c, desc, rc, err)
}

func (h *Handler) adminDelete(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	if err := h.svc.Admin().DeleteFile(ctx, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	h.svc.LoggerFromContext(c).Info("admin deleted file",
		zap.String("file_id", c.Param("id")),
		zap.String("admin", auth.OwnerID(c)))
	c.Status(http.StatusNoContent)
}

func (h *Handler) adminStats(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	stats, err := h.svc.Admin().Stats(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	recent, err := toFiles(stats.RecentFiles)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, &Stats{
		TotalFiles:   stats.TotalFiles,
		RecentFiles:  recent,
		Distribution: stats.Distribution,
	})
}

func (h *Handler) writeFile(c *gin.Context, status int, desc *model.FileDescriptor) {
	f, err := toFile(desc)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, f)
}

func (h *Handler) writeFiles(c *gin.Context, descs []*model.FileDescriptor, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	files, err := toFiles(descs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (h *Handler) writeContent(c *gin.Context, desc *model.FileDescriptor, ds *dataset.Dataset, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	f, err := toFile(desc)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, &Content{File: f, Data: ds})
}

// stream writes the blob as an attachment and closes it.
func (h *Handler) stream(c *gin.Context, desc *model.FileDescriptor, rc io.ReadCloser, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer rc.Close() //nolint:errcheck

	contentType := desc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	size := desc.Size
	if size <= 0 {
		size = -1
	}

	c.DataFromReader(http.StatusOK, size, contentType, rc, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": desc.Filename}),
	})
}
