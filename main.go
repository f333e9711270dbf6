package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github/itish2003/repair-agent/config"
	"github/itish2003/repair-agent/controller"
	"github/itish2003/repair-agent/services"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/unidoc/unipdf/v3/common/license"
	"google.golang.org/genai"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load config from %s: %v", configPath, err)
	}

	// PDF manual extraction needs a UniDoc license; without one, ingestion
	// still works for JSON guides and plain-text manuals.
	if key := os.Getenv("UNIDOC_LICENSE_KEY"); key != "" {
		if err := license.SetMeteredKey(key); err != nil {
			log.Printf("WARN: Failed to set UniDoc license key: %v. PDF extraction will fail.", err)
		}
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	chromaClient, err := chromago.NewHTTPClient(chromago.WithBaseURL(cfg.Chroma.URL))
	if err != nil {
		log.Fatalf("FATAL: Failed to create chroma client: %v", err)
	}
	defer func() {
		if cerr := chromaClient.Close(); cerr != nil {
			log.Printf("Warning: Failed to close chroma client: %v", cerr)
		}
	}()

	collection, err := getOrCreateCollection(chromaClient, cfg.Chroma.Collection)
	if err != nil {
		log.Fatalf("FATAL: Failed to get or create collection: %v", err)
	}

	geminiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to create Gemini client: %v. Make sure GEMINI_API_KEY is set.", err)
	}
	log.Println("Successfully connected to Google Gemini.")

	history, err := services.NewSQLiteHistory(cfg.Data.HistoryDB)
	if err != nil {
		log.Fatalf("FATAL: Failed to open history store: %v", err)
	}
	defer history.Close()

	embedder := services.NewOllamaEmbedder(httpClient, cfg.Ollama.URL, cfg.Ollama.EmbedModel)
	index := services.NewChromaIndex(collection, cfg.Chroma.Collection)
	matcher := services.NewSimilarityMatcher(index, embedder, cfg.Matcher.DistanceThreshold)
	expander := services.NewGuideExpander(cfg.Data.GuidesDir)
	describers := services.NewDescriberService(
		geminiClient.Models, nil,
		cfg.Gemini.VisionModel, cfg.Gemini.MediaModel,
		time.Duration(cfg.Gemini.TimeoutSecs)*time.Second, "",
	)
	summarizer := services.NewGeminiSummarizer(
		geminiClient.Models, cfg.Gemini.SummaryModel,
		cfg.Ingest.MaxAttempts, time.Duration(cfg.Ingest.BaseDelaySecs)*time.Second,
	)
	sessions := services.NewGeminiSessionFactory(geminiClient, cfg.Gemini.AgentModel)

	agentService := services.NewAgentService(
		sessions, matcher, history, expander, describers,
		geminiClient.Models, cfg.Gemini.WalkthroughModel,
		nil, cfg.Agent.MaxSteps, cfg.Matcher.HistoryTurns,
	)
	indexer := services.NewIndexingService(index, embedder, summarizer, cfg.Data.GuidesDir, cfg.Chroma.Collection)
	agentController := controller.NewAgentController(agentService, indexer, index, history, cfg.Matcher.HistoryTurns)

	// Keep the index in sync with guide edits while the server runs.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	watcher := services.NewWatcherService(indexer, cfg.Data.GuidesDir)
	go watcher.Watch(ctx)

	router := gin.Default()

	// CORS middleware for local frontend testing.
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "Repair Agent API",
			"version": "1.0.0",
		})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/agent", agentController.HandleAgent)           // Main multimodal agent endpoint
		apiV1.POST("/index", agentController.HandleIndex)           // Trigger a full ingestion pass
		apiV1.GET("/documents", agentController.HandleDocuments)    // List indexed documents
		apiV1.GET("/history/:user_id", agentController.HandleHistory) // Recent turns for a user
	}

	port := cfg.Server.Port
	log.Printf("Repair agent backend starting on http://localhost:%s", port)
	log.Printf("API endpoints:")
	log.Printf("  POST http://localhost:%s/api/v1/agent", port)
	log.Printf("  POST http://localhost:%s/api/v1/index", port)

	if err := router.Run(":" + port); err != nil {
		log.Fatalf("FATAL: Failed to start server: %v", err)
	}
}

// getOrCreateCollection fetches the guide collection, creating it on first
// run.
func getOrCreateCollection(client chromago.Client, collectionName string) (chromago.Collection, error) {
	ctx := context.Background()

	log.Printf("Getting or creating collection '%s'...", collectionName)

	collection, err := client.GetOrCreateCollection(
		ctx,
		collectionName,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "Repair guide summaries"),
				chromago.NewStringAttribute("created_by", "indexing_service"),
			),
		),
	)
	if err != nil {
		return nil, err
	}

	log.Printf("Successfully got/created collection '%s'", collectionName)
	return collection, nil
}
