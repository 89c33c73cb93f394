package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"internationally/internal/ingest"
	"internationally/internal/repository"
	"internationally/internal/transport/http/response"
)

// KnowledgeHandler exposes the knowledge base: listing ingested sources and
// ingesting new ones over HTTP. Bulk ingestion stays on the CLI; this
// endpoint is for adding single sources while the service runs.
type KnowledgeHandler struct {
	pipeline   *ingest.Pipeline
	sourceRepo *repository.SourceRepository
}

type IngestRequest struct {
	URL string `json:"url" binding:"required,url"`
}

func NewKnowledgeHandler(pipeline *ingest.Pipeline, sourceRepo *repository.SourceRepository) *KnowledgeHandler {
	return &KnowledgeHandler{pipeline: pipeline, sourceRepo: sourceRepo}
}

func (h *KnowledgeHandler) ListSources(c *gin.Context) {
	sources, err := h.sourceRepo.List()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list sources failed")
		return
	}

	response.OK(c, gin.H{"sources": sources})
}

func (h *KnowledgeHandler) IngestURL(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.pipeline.IngestURL(c.Request.Context(), req.URL)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed: "+err.Error())
		return
	}

	response.OK(c, gin.H{
		"url":         result.URL,
		"title":       result.Title,
		"chunk_count": result.ChunkCount,
	})
}
