package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"nexuscred/internal/attestation"
	attestationhandler "nexuscred/internal/attestation/handler"
	"nexuscred/internal/issuance/fraud"
	issuancehandler "nexuscred/internal/issuance/handler"
	issuancemetrics "nexuscred/internal/issuance/metrics"
	issuanceports "nexuscred/internal/issuance/ports"
	issuanceservice "nexuscred/internal/issuance/service"
	issuancestore "nexuscred/internal/issuance/store"
	"nexuscred/internal/ledger"
	"nexuscred/internal/platform/config"
	"nexuscred/internal/platform/database"
	"nexuscred/internal/platform/health"
	"nexuscred/internal/platform/kafka/producer"
	redisclient "nexuscred/internal/platform/redis"
	"nexuscred/internal/platform/tracer"
	proofhandler "nexuscred/internal/proof/handler"
	proofmetrics "nexuscred/internal/proof/metrics"
	proofports "nexuscred/internal/proof/ports"
	proofservice "nexuscred/internal/proof/service"
	proofstore "nexuscred/internal/proof/store"
	"nexuscred/internal/ratelimit"
	requirementhandler "nexuscred/internal/requirement/handler"
	requirementmetrics "nexuscred/internal/requirement/metrics"
	requirementservice "nexuscred/internal/requirement/service"
	requirementstore "nexuscred/internal/requirement/store"
	httptransport "nexuscred/internal/transport/http"
	vchandler "nexuscred/internal/vc/handler"
	vcmodels "nexuscred/internal/vc/models"
	vcservice "nexuscred/internal/vc/service"
	vcstore "nexuscred/internal/vc/store"
	"nexuscred/migrations"
	id "nexuscred/pkg/domain"
	"nexuscred/pkg/platform/audit"
	auditmemory "nexuscred/pkg/platform/audit/memory"
	"nexuscred/pkg/platform/audit/outbox"
	outboxmetrics "nexuscred/pkg/platform/audit/outbox/metrics"
	outboxpostgres "nexuscred/pkg/platform/audit/outbox/store/postgres"
	"nexuscred/pkg/platform/audit/outbox/worker"
	"nexuscred/pkg/platform/audit/publisher"
	"nexuscred/pkg/platform/circuit"
	"nexuscred/pkg/platform/middleware/metadata"
	"nexuscred/pkg/platform/middleware/request"
)

const auditBufferSize = 1024

// infra holds the optional external connections. Nil fields are not configured.
type infra struct {
	db    *database.Pool
	redis *redisclient.Client
	kafka *producer.Producer
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	out := &infra{}

	if cfg.DatabaseURL != "" {
		pool, err := database.New(ctx, database.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		out.db = pool
		if err := database.Migrate(ctx, pool.DB(), migrations.FS); err != nil {
			out.Close(log)
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		log.Info("database connected", "max_open_conns", pool.Stats().MaxOpenConnections)
	}

	if cfg.Redis.Enabled() {
		client, err := redisclient.New(ctx, cfg.Redis, redisclient.NewPoolMetrics(prometheus.DefaultRegisterer))
		if err != nil {
			out.Close(log)
			return nil, fmt.Errorf("open redis: %w", err)
		}
		out.redis = client
		log.Info("redis connected")
	}

	if cfg.Kafka.Enabled() {
		prod, err := producer.New(producer.DefaultConfig(cfg.Kafka.Brokers), log)
		if err != nil {
			out.Close(log)
			return nil, fmt.Errorf("open kafka producer: %w", err)
		}
		out.kafka = prod
		log.Info("kafka producer ready", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.EventsTopic)
	}

	return out, nil
}

func (i *infra) Close(log *slog.Logger) {
	if i.kafka != nil {
		if err := i.kafka.Close(); err != nil {
			log.Warn("failed to close kafka producer", "error", err)
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}
}

// credentialStore is what issuance writes and the credential service reads.
type credentialStore interface {
	AppendAll(ctx context.Context, vcs []*vcmodels.VerifiableCredential) error
	ListByStudent(ctx context.Context, studentID id.StudentID) ([]*vcmodels.VerifiableCredential, error)
	CountByStudent(ctx context.Context, studentID id.StudentID) (int, error)
}

type app struct {
	issuance     *issuanceservice.Service
	credentials  *vcservice.Service
	requirements *requirementservice.Service
	proofs       *proofservice.Gateway
	attester     *attestation.Issuer
	health       *health.Handler
	latency      *request.Metrics
	publisher    *publisher.Publisher

	outbox outbox.Store
	relay  *worker.Worker

	rateLimit *ratelimit.Middleware
	// rateWindows is set when limits are kept in process memory.
	rateWindows *ratelimit.InMemoryStore
}

func buildApp(cfg config.Server, log *slog.Logger, infra *infra, reg prometheus.Registerer) *app {
	tr := tracer.NewOTel()

	var (
		issuanceStore issuanceservice.Store
		anchorTx      issuanceservice.AnchorTx
		creds         credentialStore
		reqBackend    requirementstore.Backend
		proofs        proofservice.Store
		outboxStore   outbox.Store
		auditStore    audit.Store
	)
	if infra.db != nil {
		db := infra.db.DB()
		issuanceStore = issuancestore.NewPostgres(db)
		creds = vcstore.NewPostgres(db)
		anchorTx = issuanceservice.NewPostgresAnchorTx(db)
		reqBackend = requirementstore.NewPostgres(db)
		proofs = proofstore.NewPostgres(db)
		outboxStore = outboxpostgres.New(db)
		auditStore = outbox.NewAuditStore(outboxStore)
	} else {
		mem := issuancestore.New()
		memCreds := vcstore.New()
		issuanceStore = mem
		creds = memCreds
		anchorTx = issuanceservice.NewShardedAnchorTx(mem, memCreds)
		reqBackend = requirementstore.New()
		proofs = proofstore.New()
		auditStore = auditmemory.NewStore()
	}

	reqMetrics := requirementmetrics.NewWith(reg)
	var reqStore requirementservice.Store = reqBackend
	if infra.redis != nil {
		reqStore = requirementstore.NewRedisCache(reqBackend, infra.redis.Client, cfg.RequirementCacheTTL, reqMetrics, log)
	}

	pub := publisher.New(auditStore, publisher.WithAsyncBuffer(auditBufferSize), publisher.WithLogger(log))
	auditor := audit.NewLogger(log, pub)

	ledgerClient, verifier, minter := buildCollaborators(cfg, log, tr)

	issuance := issuanceservice.New(issuanceStore, anchorTx, ledgerClient,
		issuanceservice.WithLogger(log),
		issuanceservice.WithMetrics(issuancemetrics.NewWith(reg)),
		issuanceservice.WithTracer(tr),
		issuanceservice.WithAuditor(auditor),
		issuanceservice.WithScorer(fraud.New(fraud.Config{
			LargeBatchThreshold: cfg.Fraud.LargeBatchThreshold,
			LargeBatchPenalty:   cfg.Fraud.LargeBatchPenalty,
			UniformMinCount:     cfg.Fraud.UniformMinCount,
			UniformPenalty:      cfg.Fraud.UniformPenalty,
		})),
		issuanceservice.WithReviewThreshold(cfg.Fraud.ReviewThreshold),
	)
	credentials := vcservice.New(creds, issuance, vcservice.WithLogger(log))
	requirements := requirementservice.New(reqStore,
		requirementservice.WithLogger(log),
		requirementservice.WithMetrics(reqMetrics),
		requirementservice.WithTracer(tr),
		requirementservice.WithAuditor(auditor),
	)
	attester := attestation.New(cfg.Attestation.SigningKey, cfg.Attestation.Issuer, cfg.Attestation.TTL)
	gateway := proofservice.New(proofs, credentials, requirements, verifier, minter,
		proofservice.WithLogger(log),
		proofservice.WithMetrics(proofmetrics.NewWith(reg)),
		proofservice.WithTracer(tr),
		proofservice.WithAuditor(auditor),
		proofservice.WithAttester(attester),
	)

	checks := health.New(cfg.Environment)
	if infra.db != nil {
		checks.RegisterCheck("database", infra.db.Health)
	}
	if infra.redis != nil {
		checks.RegisterOptional("redis", infra.redis.Health)
	}
	if infra.kafka != nil {
		checks.RegisterCheck("kafka", infra.kafka.Check)
	}

	a := &app{
		issuance:     issuance,
		credentials:  credentials,
		requirements: requirements,
		proofs:       gateway,
		attester:     attester,
		health:       checks,
		latency:      request.NewMetricsWith(reg),
		publisher:    pub,
		outbox:       outboxStore,
	}
	if !cfg.RateLimit.Disabled {
		var store ratelimit.Store
		if infra.redis != nil {
			store = ratelimit.NewRedisStore(infra.redis.Client)
		} else {
			a.rateWindows = ratelimit.NewInMemoryStore()
			store = a.rateWindows
		}
		limiter := ratelimit.NewLimiter(store, map[ratelimit.Class]ratelimit.Policy{
			ratelimit.ClassRead:  {Limit: cfg.RateLimit.ReadLimit, Window: cfg.RateLimit.Window},
			ratelimit.ClassWrite: {Limit: cfg.RateLimit.WriteLimit, Window: cfg.RateLimit.Window},
		})
		a.rateLimit = ratelimit.NewMiddleware(limiter, log, ratelimit.NewMetrics(reg))
	}
	if outboxStore != nil && infra.kafka != nil {
		a.relay = worker.New(outboxStore, infra.kafka,
			worker.WithTopic(cfg.Kafka.EventsTopic),
			worker.WithMetrics(outboxmetrics.NewWith(reg)),
			worker.WithLogger(log),
		)
	}
	return a
}

// buildCollaborators selects HTTP or simulated collaborators per endpoint.
func buildCollaborators(cfg config.Server, log *slog.Logger, tr tracer.Tracer) (issuanceports.Ledger, proofports.Verifier, proofports.TokenMinter) {
	var (
		l issuanceports.Ledger   = ledger.NewSimulatedLedger()
		v proofports.Verifier    = ledger.NewSimulatedVerifier()
		m proofports.TokenMinter = ledger.NewSimulatedMinter()
	)
	if !cfg.Ledger.Simulated() {
		l = ledger.NewHTTPLedger(clientConfig("ledger", cfg.Ledger, log), tr)
	}
	if !cfg.Verifier.Simulated() {
		v = ledger.NewHTTPVerifier(clientConfig("verifier", cfg.Verifier, log), tr)
	}
	if !cfg.Minter.Simulated() {
		m = ledger.NewHTTPMinter(clientConfig("minter", cfg.Minter, log), tr)
	}
	return l, v, m
}

func clientConfig(name string, c config.Collaborator, log *slog.Logger) ledger.ClientConfig {
	return ledger.ClientConfig{
		Name:    name,
		BaseURL: c.URL,
		APIKey:  c.APIKey,
		Timeout: c.Timeout,
		Breaker: circuit.New(name),
		Logger:  log.With("collaborator", name),
	}
}

func (a *app) router(cfg config.Server, log *slog.Logger, gatherer prometheus.Gatherer) (http.Handler, error) {
	proxies, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	return httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Latency:        a.latency,
		Gatherer:       gatherer,
		TrustedProxies: proxies,
		RateLimit:      a.rateLimit,
	},
		a.health,
		issuancehandler.New(a.issuance, log),
		vchandler.New(a.credentials, log),
		requirementhandler.New(a.requirements, log),
		proofhandler.New(a.proofs, log),
		attestationhandler.New(a.attester, log),
	), nil
}

// maintainOutbox refreshes the pending gauge and prunes relayed entries.
func (a *app) maintainOutbox(ctx context.Context, log *slog.Logger) {
	ticker := time.NewTicker(outboxCleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.relay.UpdateMetrics(ctx); err != nil {
				log.WarnContext(ctx, "failed to refresh outbox depth", "error", err)
			}
			deleted, err := a.outbox.DeleteProcessedBefore(ctx, time.Now().Add(-outboxRetention))
			if err != nil {
				log.WarnContext(ctx, "failed to prune outbox", "error", err)
				continue
			}
			if deleted > 0 {
				log.InfoContext(ctx, "pruned outbox", "deleted", deleted)
			}
		}
	}
}

// sweepRateWindows drops idle in-memory rate limit windows.
func (a *app) sweepRateWindows(ctx context.Context, window time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.rateWindows.Sweep(window); n > 0 {
				log.DebugContext(ctx, "swept idle rate limit windows", "removed", n)
			}
		}
	}
}

// Close drains the audit buffer.
func (a *app) Close() {
	a.publisher.Close()
}
