package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/emilyzhang/assetcrawlr/assetcrawler"
	"github.com/emilyzhang/assetcrawlr/bundle"
	"github.com/emilyzhang/assetcrawlr/extractiondb"
	"github.com/emilyzhang/assetcrawlr/logger"
	"github.com/gin-gonic/gin"
)

type extractionRequest struct {
	URL               string `json:"url" binding:"required"`
	IncludePayloads   bool   `json:"includePayloads"`
	IncludeSourcePage bool   `json:"includeSourcePage"`
}

// routes registers every endpoint on the engine.
func (s *Server) routes() {
	s.engine.GET("/health", s.healthHandler)

	ex := s.engine.Group("/extractions")
	ex.POST("", s.createHandler)
	ex.GET("/:id", s.statusHandler)
	ex.GET("/:id/download", s.downloadHandler)
	ex.GET("/:id/files/:fileId", s.fileHandler)
	ex.DELETE("/:id", s.cancelHandler)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// createHandler starts a new extraction and answers before it runs.
func (s *Server) createHandler(c *gin.Context) {
	var req extractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	r, err := s.crawler.StartExtraction(c.Request.Context(), assetcrawler.Options{
		URL:               req.URL,
		IncludePayloads:   req.IncludePayloads,
		IncludeSourcePage: req.IncludeSourcePage,
	})
	if errors.Is(err, assetcrawler.ErrInvalidURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.log.Error("Unable to start extraction", logger.String("url", req.URL), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to start extraction"})
		return
	}
	s.log.Info("Extraction created", logger.String("extraction_id", r.ID), logger.String("url", r.URL))
	c.JSON(http.StatusAccepted, r)
}

// statusHandler returns an extraction with file metadata only.
func (s *Server) statusHandler(c *gin.Context) {
	r, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.Summary())
}

// downloadHandler streams a zip archive of a completed extraction.
func (s *Server) downloadHandler(c *gin.Context) {
	r, ok := s.lookup(c)
	if !ok {
		return
	}
	entries, err := bundle.Entries(r)
	if errors.Is(err, bundle.ErrNotCompleted) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "status": r.Status})
		return
	}
	if err != nil {
		s.serverError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := bundle.WriteZip(&buf, entries); err != nil {
		s.serverError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="extraction-%s.zip"`, r.ID))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

// fileHandler returns the raw content of one extracted file.
func (s *Server) fileHandler(c *gin.Context) {
	r, ok := s.lookup(c)
	if !ok {
		return
	}
	content, mimeType, err := bundle.File(r, c.Param("fileId"))
	if errors.Is(err, bundle.ErrFileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.serverError(c, err)
		return
	}
	c.Data(http.StatusOK, mimeType, content)
}

// cancelHandler stops an extraction that is still running in this process.
func (s *Server) cancelHandler(c *gin.Context) {
	r, ok := s.lookup(c)
	if !ok {
		return
	}
	if r.Status.Terminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "extraction already finished", "status": r.Status})
		return
	}
	if err := s.crawler.Cancel(r.ID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	s.log.Info("Extraction cancel requested", logger.String("extraction_id", r.ID))
	c.JSON(http.StatusAccepted, gin.H{"id": r.ID, "status": "cancelling"})
}

// lookup loads the extraction named by the :id param, answering the request
// itself when that fails.
func (s *Server) lookup(c *gin.Context) (*extractiondb.ExtractionResult, bool) {
	id := c.Param("id")
	r, err := s.store.Get(c.Request.Context(), id)
	if errors.Is(err, extractiondb.ErrDoesNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("There is no extraction with this id: %s", id)})
		return nil, false
	}
	if err != nil {
		s.serverError(c, err)
		return nil, false
	}
	return r, true
}

func (s *Server) serverError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
