package controller

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github/itish2003/repair-agent/models"
	"github/itish2003/repair-agent/services"
)

// AgentController handles the HTTP requests for the repair assistant. It
// depends on the service layer for all business logic.
type AgentController struct {
	agent   services.AgentService
	indexer services.Indexer
	index   services.VectorIndex
	history services.HistoryStore

	historyTurns int
}

// NewAgentController is the constructor called from main.go to inject the
// service dependencies.
func NewAgentController(agent services.AgentService, indexer services.Indexer, index services.VectorIndex, history services.HistoryStore, historyTurns int) *AgentController {
	return &AgentController{
		agent:        agent,
		indexer:      indexer,
		index:        index,
		history:      history,
		historyTurns: historyTurns,
	}
}

// HandleAgent is the Gin handler for POST /api/v1/agent. It decodes the
// multipart form and delegates the pipeline to the agent service.
func (c *AgentController) HandleAgent(ctx *gin.Context) {
	userID := ctx.PostForm("user_id")
	if userID == "" {
		userID = "Unknown User"
	}

	req := models.AgentRequest{
		UserID: userID,
		Query:  ctx.PostForm("query"),
		Image:  readFormFile(ctx, "image"),
		Audio:  readFormFile(ctx, "audio"),
		Video:  readFormFile(ctx, "video"),
	}

	response, err := c.agent.HandleRequest(ctx.Request.Context(), req)
	if err != nil {
		// The service has already logged the failure with full context; the
		// caller only gets a generic signal.
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process request"})
		return
	}

	ctx.JSON(http.StatusOK, response)
}

// HandleIndex is the Gin handler for POST /api/v1/index. It triggers a full
// ingestion pass over the guides directory.
func (c *AgentController) HandleIndex(ctx *gin.Context) {
	report, err := c.indexer.BuildIndex(ctx.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoDocuments) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Index build failed - check server logs"})
		return
	}

	ctx.JSON(http.StatusOK, report)
}

// HandleDocuments is the Gin handler for GET /api/v1/documents.
func (c *AgentController) HandleDocuments(ctx *gin.Context) {
	docs, err := c.index.ListDocuments(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve documents"})
		return
	}

	ctx.JSON(http.StatusOK, models.ListDocumentsResponse{
		Count:     len(docs),
		Documents: docs,
	})
}

// HandleHistory is the Gin handler for GET /api/v1/history/:user_id.
func (c *AgentController) HandleHistory(ctx *gin.Context) {
	userID := ctx.Param("user_id")

	turns, err := c.history.LastN(ctx.Request.Context(), userID, c.historyTurns)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve chat history"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user_id": userID, "turns": turns})
}

// readFormFile returns the raw bytes of an uploaded file, or nil when the
// field is absent or unreadable. Unreadable uploads are treated as missing;
// the describers surface their own placeholders for bad payloads.
func readFormFile(ctx *gin.Context, field string) []byte {
	header, err := ctx.FormFile(field)
	if err != nil {
		return nil
	}
	f, err := header.Open()
	if err != nil {
		log.Printf("CONTROLLER WARN: could not open uploaded %s file: %v", field, err)
		return nil
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		log.Printf("CONTROLLER WARN: could not read uploaded %s file: %v", field, err)
		return nil
	}
	return data
}
