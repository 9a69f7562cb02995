package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cropopt/internal/catalog"
	"cropopt/internal/metrics"
	"cropopt/internal/model"
	"cropopt/pkg/cropopt"
)

// Service is the optimizer surface the HTTP API exposes.
type Service interface {
	Mode() string
	PolicyName() string
	Crops() []model.CropRecord
	Compatibility(a, b string) (float64, error)
	Generate(req cropopt.GenerateRequest) ([]model.Plan, error)
	Evaluate(plan model.Plan) (cropopt.Evaluation, error)
	Validate(plan model.Plan) (bool, []string)
	Run(ctx context.Context, req cropopt.RunRequest) (cropopt.RunSummary, error)
	Runs(ctx context.Context, req cropopt.RunsRequest) ([]cropopt.RunItem, error)
	TopPlans(ctx context.Context, req cropopt.RunLookup) ([]model.TopPlanRecord, error)
}

type Server struct {
	router *gin.Engine
	svc    Service
	logger *slog.Logger
}

type compatibilityRequest struct {
	A string `json:"a" binding:"required"`
	B string `json:"b" binding:"required"`
}

type generateRequest struct {
	Seed        *int64      `json:"seed"`
	Count       int         `json:"count"`
	Site        *model.Site `json:"site"`
	TotalAreaHa float64     `json:"total_area_ha"`
}

type planRequest struct {
	Plan model.Plan `json:"plan"`
}

type runRequest struct {
	RunID                string `json:"run_id"`
	Population           int    `json:"population"`
	Generations          int    `json:"generations"`
	Seed                 *int64 `json:"seed"`
	Workers              int    `json:"workers"`
	ContinuePopulationID string `json:"continue_population_id"`
	TopPlans             int    `json:"top_plans"`
}

func New(svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{router: gin.New(), svc: svc, logger: logger}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "mode": s.svc.Mode(), "compatibility": s.svc.PolicyName()})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Gatherer(), promhttp.HandlerOpts{})))

	v1 := s.router.Group("/v1")
	v1.GET("/crops", s.crops)
	v1.POST("/compatibility", s.compatibility)
	v1.POST("/plans/generate", s.generate)
	v1.POST("/plans/evaluate", s.evaluate)
	v1.POST("/plans/validate", s.validate)
	v1.POST("/runs", s.run)
	v1.GET("/runs", s.runs)
	v1.GET("/runs/:id/top", s.topPlans)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) crops(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"crops": s.svc.Crops()})
}

func (s *Server) compatibility(c *gin.Context) {
	var body compatibilityRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	score, err := s.svc.Compatibility(body.A, body.B)
	if err != nil {
		if errors.Is(err, catalog.ErrCropNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"a": body.A, "b": body.B, "policy": s.svc.PolicyName(), "score": score})
}

func (s *Server) generate(c *gin.Context) {
	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plans, err := s.svc.Generate(cropopt.GenerateRequest{
		Seed:        body.Seed,
		Count:       body.Count,
		Site:        body.Site,
		TotalAreaHa: body.TotalAreaHa,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func (s *Server) evaluate(c *gin.Context) {
	plan, ok := bindPlan(c)
	if !ok {
		return
	}
	evaluation, err := s.svc.Evaluate(plan)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, evaluation)
}

func (s *Server) validate(c *gin.Context) {
	plan, ok := bindPlan(c)
	if !ok {
		return
	}
	valid, violations := s.svc.Validate(plan)
	c.JSON(http.StatusOK, gin.H{"valid": valid, "violations": violations})
}

func (s *Server) run(c *gin.Context) {
	var body runRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	summary, err := s.svc.Run(c.Request.Context(), cropopt.RunRequest{
		RunID:                body.RunID,
		Population:           body.Population,
		Generations:          body.Generations,
		Seed:                 body.Seed,
		Workers:              body.Workers,
		ContinuePopulationID: body.ContinuePopulationID,
		TopPlans:             body.TopPlans,
	})
	if err != nil {
		s.logger.Error("run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, summary)
}

func (s *Server) runs(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	runs, err := s.svc.Runs(c.Request.Context(), cropopt.RunsRequest{Limit: limit})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) topPlans(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	top, err := s.svc.TopPlans(c.Request.Context(), cropopt.RunLookup{RunID: c.Param("id"), Limit: limit})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"top_plans": top})
}

func bindPlan(c *gin.Context) (model.Plan, bool) {
	var body planRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return model.Plan{}, false
	}
	if len(body.Plan.Allocations) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan has no allocations"})
		return model.Plan{}, false
	}
	return body.Plan, true
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
