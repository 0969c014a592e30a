package container

import (
	"context"
	"fmt"
	"log"

	"attune/adapters/llm"
	"attune/adapters/postgres"
	"attune/app"
	"attune/internal/api"
	"attune/internal/config"
	"attune/internal/sequence"
	"attune/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB        *sqlx.DB
	Sequences *sequence.Allocator
	SSEHub    *api.SSEHub

	// Repositories
	AttemptRepo    ports.AttemptRepository
	ExpressionRepo ports.ExpressionRepository
	GapRepo        ports.GapResultRepository
	ShareRepo      ports.ShareHistoryRepository
	OfferRepo      ports.OfferRepository
	ValidationRepo ports.ValidationRepository

	// Oracle adapters
	Oracle  ports.GapOracle
	Drafter ports.SuggestionDrafter

	// Services
	Reconciliation *app.ReconciliationService
	Offers         *app.OfferManager
	Reveals        *app.RevealCoordinator
	Validator      *app.ValidationTracker
	Insights       *app.InsightsService
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return &Container{Config: cfg}, nil
}

// InitWithDatabase wires every component that needs database access
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	c.DB = db

	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	c.initRepositories()
	if err := c.initOracle(); err != nil {
		return fmt.Errorf("failed to initialize oracle: %w", err)
	}
	c.initServices()

	log.Printf("[Container] Initialized with database connection")
	return nil
}

func (c *Container) initRepositories() {
	c.AttemptRepo = postgres.NewAttemptRepository(c.DB)
	c.ExpressionRepo = postgres.NewExpressionRepository(c.DB)
	c.GapRepo = postgres.NewGapResultRepository(c.DB)
	c.ShareRepo = postgres.NewShareHistoryRepository(c.DB)
	c.OfferRepo = postgres.NewOfferRepository(c.DB)
	c.ValidationRepo = postgres.NewValidationRepository(c.DB)
}

func (c *Container) initOracle() error {
	client, err := llm.NewClient(llm.Config{
		APIKey:      c.Config.AI.OpenAIKey,
		Model:       c.Config.AI.OpenAIModel,
		Timeout:     c.Config.AI.Timeout,
		Temperature: c.Config.AI.Temperature,
		MaxTokens:   c.Config.AI.MaxTokens,
	})
	if err != nil {
		return err
	}
	c.Oracle = llm.NewGapOracleAdapter(client,
		c.Config.Engine.OracleMaxAttempts, c.Config.Engine.OracleBackoffBase)
	c.Drafter = llm.NewDrafterAdapter(client)
	return nil
}

func (c *Container) initServices() {
	c.Sequences = sequence.NewAllocator()
	c.SSEHub = api.NewSSEHub(c.Sequences)

	c.Reveals = app.NewRevealCoordinator(c.AttemptRepo, c.SSEHub)
	c.Offers = app.NewOfferManager(c.OfferRepo, c.ShareRepo, c.GapRepo,
		c.AttemptRepo, c.Drafter, c.SSEHub, c.Reveals, c.Config.Engine.OfferTTL)
	c.Reconciliation = app.NewReconciliationService(c.AttemptRepo,
		c.ExpressionRepo, c.GapRepo, c.ValidationRepo, c.Oracle, c.SSEHub,
		c.Offers, c.Reveals, c.Sequences, c.Config.Engine.MaxRefinementCycles)
	c.Validator = app.NewValidationTracker(c.AttemptRepo, c.ValidationRepo, c.SSEHub, nil)
	c.Insights = app.NewInsightsService(c.AttemptRepo, c.GapRepo, c.ShareRepo)
}

// SetStageCompleter installs the downstream stage-progression hook. Optional;
// without one, completion is only broadcast over SSE.
func (c *Container) SetStageCompleter(stage ports.StageCompleter) {
	c.Validator = app.NewValidationTracker(c.AttemptRepo, c.ValidationRepo, c.SSEHub, stage)
}

// Shutdown releases container-owned resources. The SSE hub is stopped here so
// connected clients get a clean close.
func (c *Container) Shutdown(_ context.Context) {
	if c.SSEHub != nil {
		c.SSEHub.Shutdown()
	}
	log.Printf("[Container] Shutdown complete")
}
