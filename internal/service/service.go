package service

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"

	"github.com/jarvishq/jarvisd/internal/config"
	"github.com/jarvishq/jarvisd/internal/domain"
	"github.com/jarvishq/jarvisd/internal/store"
	"github.com/jarvishq/jarvisd/internal/tools"
	"github.com/jarvishq/jarvisd/internal/vector"
	"github.com/jarvishq/jarvisd/policy"
)

const vectorCollection = "memories"

// Service bundles the assistant backend: tool dispatch behind the approval
// gateway, the run audit trail, and the memory subsystem with hybrid
// retrieval.
type Service struct {
	store    *store.SQLiteStore
	registry *tools.Registry
	policy   *policy.Engine
	embedder vector.Embedder
	index    vector.Index
	recorder *Recorder
	gateway  *Gateway
	cfg      *config.Config
	log      *log.Logger
}

// New wires a Service. embedder and index may be nil; retrieval then runs
// lexical-only and no vectors are maintained. prompter may be nil; guarded
// runs then pause pending an HTTP decision.
func New(st *store.SQLiteStore, registry *tools.Registry, eng *policy.Engine, embedder vector.Embedder, index vector.Index, prompter Prompter, cfg *config.Config, logger *log.Logger) *Service {
	return &Service{
		store:    st,
		registry: registry,
		policy:   eng,
		embedder: embedder,
		index:    index,
		recorder: NewRecorder(st, logger),
		gateway:  NewGateway(st, prompter, cfg.ApprovalTimeout, logger),
		cfg:      cfg,
		log:      logger,
	}
}

// Store exposes the backing store for read-side handlers.
func (s *Service) Store() *store.SQLiteStore { return s.store }

// Recorder exposes the run recorder.
func (s *Service) Recorder() *Recorder { return s.recorder }

// Gateway exposes the approval gateway.
func (s *Service) Gateway() *Gateway { return s.gateway }

// SeedTools upserts the built-in tool catalog. Existing rows are refreshed
// in place, so local enable/disable flags survive a restart only when the
// seed agrees; the seed is the source of truth for risk tiers.
func (s *Service) SeedTools(ctx context.Context) error {
	for _, tool := range builtinTools() {
		t := tool
		if err := s.store.UpsertTool(ctx, &t); err != nil {
			return &domain.StorageError{Op: "seed tool " + t.Name, Err: err}
		}
	}
	return nil
}

func builtinTools() []domain.Tool {
	return []domain.Tool{
		{
			Name:            "shell",
			Category:        "system",
			Description:     "Run an allowlisted shell command on the host",
			Risk:            domain.RiskHigh,
			RequiresConfirm: true,
			Enabled:         true,
			Schema:          schemaObj("command"),
			TimeoutMs:       8000,
		},
		{
			Name:        "queries",
			Category:    "productivity",
			Description: "List and expand saved query templates",
			Risk:        domain.RiskLow,
			Enabled:     true,
			Schema:      schemaObj("action"),
			TimeoutMs:   2000,
		},
		{
			Name:            "device",
			Category:        "system",
			Description:     "Open applications and URLs, post desktop notifications",
			Risk:            domain.RiskMedium,
			RequiresConfirm: true,
			Enabled:         true,
			Schema:          schemaObj("action"),
			TimeoutMs:       5000,
		},
		{
			Name:        "memory_write",
			Category:    "memory",
			Description: "Store a memory item",
			Risk:        domain.RiskLow,
			Enabled:     true,
			Schema:      schemaObj("body"),
			TimeoutMs:   2000,
		},
		{
			Name:        "memory_query",
			Category:    "memory",
			Description: "Search stored memory items",
			Risk:        domain.RiskLow,
			Enabled:     true,
			Schema:      schemaObj(),
			TimeoutMs:   2000,
		},
		{
			Name:        "memory_pin",
			Category:    "memory",
			Description: "Pin a memory item so it never expires",
			Risk:        domain.RiskLow,
			Enabled:     true,
			Schema:      schemaObj("memory_id"),
			TimeoutMs:   2000,
		},
		{
			Name:            "memory_forget",
			Category:        "memory",
			Description:     "Permanently delete a memory item",
			Risk:            domain.RiskMedium,
			RequiresConfirm: true,
			Enabled:         true,
			Schema:          schemaObj("memory_id"),
			TimeoutMs:       2000,
		},
	}
}

func schemaObj(required ...string) json.RawMessage {
	schema := map[string]any{"type": "object"}
	if len(required) > 0 {
		schema["required"] = required
	}
	b, _ := json.Marshal(schema)
	return b
}
