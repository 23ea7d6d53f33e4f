package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codessneha/SciScope/config"
	"github.com/codessneha/SciScope/inference"
	"github.com/codessneha/SciScope/models"
	"github.com/codessneha/SciScope/providers"
	"github.com/codessneha/SciScope/providers/arxiv"
	"github.com/codessneha/SciScope/providers/semanticscholar"
	"github.com/codessneha/SciScope/services"
	"github.com/codessneha/SciScope/storage"
)

var (
	newPapersCounter  prometheus.Counter
	questionsCounter  prometheus.Counter
	graphsCounter     prometheus.Counter
	embeddingFailures prometheus.Counter
)

func init() {
	newPapersCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "new_papers_added_total",
		Help: "Total number of new papers added to the database.",
	})
	questionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "questions_answered_total",
		Help: "Total number of answered research questions.",
	})
	graphsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "knowledge_graphs_generated_total",
		Help: "Total number of generated knowledge graphs.",
	})
	embeddingFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "embedding_failures_total",
		Help: "Total number of failed embedding enrichment jobs.",
	})
	prometheus.MustRegister(newPapersCounter, questionsCounter, graphsCounter, embeddingFailures)
}

// statusForError bildet die Fehlerklassen der Services auf HTTP-Status ab.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrNoValidPapers):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrSourceUnavailable), errors.Is(err, services.ErrInferenceFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

func issueToken(cfg *config.Config, userID uint) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.JWTLifetime)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// authMiddleware prüft das Bearer-Token und hängt den User an den Context.
func authMiddleware(cfg *config.Config, users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims := jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), &claims,
			func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(cfg.JWTSecret), nil
			})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		userID, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
			return
		}

		user, err := users.Get(uint(userID))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}

		c.Set("currentUser", user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet("currentUser").(*models.User)
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(
		&models.User{},
		&models.Paper{},
		&models.ChatSession{},
		&models.Message{},
		&models.KnowledgeGraph{},
	); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup Providers
	enabledProviders := []providers.Provider{
		arxiv.NewFetcher(cfg, logging),
		semanticscholar.NewFetcher(cfg, logging),
	}
	logging.Info("Active providers loaded",
		zap.Strings("providers", []string{models.SourceArxiv, models.SourceSemanticScholar}))

	// Setup Services
	mlClient := inference.NewClient(cfg, logging)

	enricher := services.NewEnrichmentWorker(db, mlClient, logging, cfg.EnrichmentQueueSize)
	enricher.Failures = embeddingFailures
	enricher.Start()

	userService := services.NewUserService(db, logging)
	paperService := services.NewPaperService(db, logging, enabledProviders, mlClient, enricher)
	sessionService := services.NewSessionService(db, logging)
	qaService := services.NewQAService(db, mlClient, sessionService, logging)
	graphService := services.NewGraphService(db, mlClient, logging)

	var archiveService *services.ArchiveService
	if cfg.ArchiveEnabled {
		s3Client, err := storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		archiveService = services.NewArchiveService(cfg, db, s3Client, logging)
	}

	// Setup Router
	router := gin.Default()
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupUserRoutes(router, cfg, userService)

	authed := router.Group("/", authMiddleware(cfg, userService))
	setupPaperRoutes(authed, paperService, archiveService, logging)
	setupSessionRoutes(authed, sessionService, qaService)
	setupGraphRoutes(authed, graphService)

	// Setup Cron: Paper ohne Embedding regelmäßig nachziehen
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.EnrichmentCron, func() {
		enricher.RequeueMissing(100)
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      180 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Error("Server beendet", zap.Error(err))
	}

	// Erst den Cron anhalten, dann die Queue schließen, damit kein Requeue
	// mehr in den gestoppten Worker läuft.
	<-cronScheduler.Stop().Done()
	enricher.Stop()
}

func setupUserRoutes(router *gin.Engine, cfg *config.Config, users *services.UserService) {
	rg := router.Group("/users")

	rg.POST("/register", func(c *gin.Context) {
		var req struct {
			Name     string `json:"name" binding:"required"`
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name, email and password are required"})
			return
		}

		user, err := users.Register(req.Name, req.Email, req.Password)
		if err != nil {
			abortWithError(c, err)
			return
		}

		token, err := issueToken(cfg, user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token creation failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
	})

	rg.POST("/login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
			return
		}

		user, err := users.Authenticate(req.Email, req.Password)
		if err != nil {
			abortWithError(c, err)
			return
		}

		token, err := issueToken(cfg, user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token creation failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
	})

	rg.GET("/me", authMiddleware(cfg, users), func(c *gin.Context) {
		c.JSON(http.StatusOK, currentUser(c))
	})
}

func setupPaperRoutes(router *gin.RouterGroup, papers *services.PaperService, archive *services.ArchiveService, log *zap.Logger) {
	rg := router.Group("/papers")

	// Seitenweise Liste, neueste zuerst
	rg.GET("/", func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

		result, total, err := papers.List(page, limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(result), "total": total, "data": result})
	})

	// Katalogsuche (arxiv oder semantic_scholar); Ergebnisse werden erst bei
	// POST /papers gespeichert.
	rg.GET("/search", func(c *gin.Context) {
		query := c.Query("query")
		source := c.DefaultQuery("source", models.SourceArxiv)
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

		result, err := papers.SearchExternal(c.Request.Context(), source, query, limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(result), "data": result})
	})

	rg.POST("/semantic-search", func(c *gin.Context) {
		var req struct {
			Query string `json:"query" binding:"required"`
			Limit int    `json:"limit"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
			return
		}
		if req.Limit <= 0 {
			req.Limit = 10
		}

		hits, err := papers.SemanticSearch(c.Request.Context(), req.Query, req.Limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(hits), "data": hits})
	})

	// Dedup-Upsert: existiert die externe ID schon, kommt der bestehende
	// Datensatz unverändert zurück.
	rg.POST("/", func(c *gin.Context) {
		var candidate models.Paper
		if err := c.ShouldBindJSON(&candidate); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paper body"})
			return
		}

		paper, created, err := papers.Upsert(&candidate, currentUser(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		if created {
			newPapersCounter.Inc()
			c.JSON(http.StatusCreated, paper)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "paper already exists", "data": paper})
	})

	// Fetch über die externe ID: lokal zuerst, sonst beim Katalog
	rg.GET("/arxiv/:externalId", func(c *gin.Context) {
		paper, created, err := papers.FetchByExternalID(c.Request.Context(), models.SourceArxiv, c.Param("externalId"), currentUser(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		if created {
			newPapersCounter.Inc()
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.GET("/semantic-scholar/:externalId", func(c *gin.Context) {
		paper, created, err := papers.FetchByExternalID(c.Request.Context(), models.SourceSemanticScholar, c.Param("externalId"), currentUser(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		if created {
			newPapersCounter.Inc()
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		paper, err := papers.Get(id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.PUT("/:id", func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}

		// Nur die gesendeten Felder binden, um Überschreiben zu verhindern
		var updates map[string]any
		if err := c.ShouldBindJSON(&updates); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		paper, err := papers.Update(id, currentUser(c), updates)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := papers.Delete(id, currentUser(c)); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "paper deleted"})
	})

	// PDF-Archivierung als losgelöster Job; das Ergebnis ist erst beim
	// nächsten Lesen des Papers sichtbar.
	rg.POST("/:id/archive", func(c *gin.Context) {
		if archive == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pdf archive is not configured"})
			return
		}
		id, ok := parseID(c, "id")
		if !ok {
			return
		}

		paper, err := papers.Get(id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		user := currentUser(c)
		if !user.IsAdmin() && (paper.AddedBy == nil || *paper.AddedBy != user.ID) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authorized to archive this paper"})
			return
		}

		go func(paperID uint) {
			if err := archive.Archive(context.Background(), paperID); err != nil {
				log.Error("Async PDF archive failed", zap.Uint("paper_id", paperID), zap.Error(err))
			}
		}(paper.ID)
		c.JSON(http.StatusAccepted, gin.H{"message": "archive job triggered"})
	})
}

func setupSessionRoutes(router *gin.RouterGroup, sessions *services.SessionService, qa *services.QAService) {
	rg := router.Group("/chat/sessions")

	rg.POST("/", func(c *gin.Context) {
		var req struct {
			Title    string `json:"title"`
			PaperIDs []uint `json:"paper_ids"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		session, err := sessions.Create(currentUser(c), req.Title, req.PaperIDs)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, session)
	})

	rg.GET("/", func(c *gin.Context) {
		result, err := sessions.List(currentUser(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(result), "data": result})
	})

	rg.GET("/:id", func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		session, err := sessions.Get(id, currentUser(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	})

	rg.PUT("/:id", func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Title    *string `json:"title"`
			IsActive *bool   `json:"is_active"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		session, err := sessions.Update(id, currentUser(c), req.Title, req.IsActive)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := sessions.Delete(id, currentUser(c)); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
	})

	rg.POST("/:id/papers", func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req struct {
			PaperIDs []uint `json:"paper_ids" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "paper_ids is required"})
			return
		}

		session, err := sessions.AddPapers(id, currentUser(c), req.PaperIDs)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	})

	rg.GET("/:id/messages", func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		messages, err := sessions.Messages(id, currentUser(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(messages), "data": messages})
	})

	rg.POST("/:id/ask", func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Question string `json:"question" binding:"required"`
			PaperIDs []uint `json:"paper_ids" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question and paper_ids are required"})
			return
		}

		message, err := qa.Ask(c.Request.Context(), id, currentUser(c), req.Question, req.PaperIDs)
		if err != nil {
			abortWithError(c, err)
			return
		}
		questionsCounter.Inc()
		c.JSON(http.StatusOK, message)
	})
}

func setupGraphRoutes(router *gin.RouterGroup, graphs *services.GraphService) {
	rg := router.Group("/graph")

	rg.POST("/generate", func(c *gin.Context) {
		var req struct {
			PaperIDs  []uint `json:"paper_ids" binding:"required"`
			SessionID uint   `json:"session_id"` // 0 = nutzerglobaler Graph
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "paper_ids is required"})
			return
		}

		graph, err := graphs.Generate(c.Request.Context(), currentUser(c), req.PaperIDs, req.SessionID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		graphsCounter.Inc()
		c.JSON(http.StatusOK, graph)
	})

	rg.GET("/", func(c *gin.Context) {
		result, err := graphs.List(currentUser(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(result), "data": result})
	})

	rg.GET("/:id", func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		graph, err := graphs.Get(id, currentUser(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, graph)
	})

	rg.PUT("/:id", func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Nodes    *[]models.GraphNode   `json:"nodes"`
			Edges    *[]models.GraphEdge   `json:"edges"`
			Metadata *models.GraphMetadata `json:"metadata"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		graph, err := graphs.Update(id, currentUser(c), services.GraphUpdate{
			Nodes:    req.Nodes,
			Edges:    req.Edges,
			Metadata: req.Metadata,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, graph)
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := graphs.Delete(id, currentUser(c)); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "knowledge graph deleted"})
	})
}
