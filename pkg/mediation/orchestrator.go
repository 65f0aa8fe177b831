// Package mediation generates AI mediation analyses for events: it builds
// the prompt, drives the completion call, persists the result, and moves the
// event's analysis status through its lifecycle.
package mediation

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/harmonia-app/harmonia/pkg/completion"
	"github.com/harmonia-app/harmonia/pkg/database"
	"github.com/harmonia-app/harmonia/pkg/kafka"
	"github.com/harmonia-app/harmonia/pkg/metrics"
	"github.com/harmonia-app/harmonia/pkg/models"
	"github.com/harmonia-app/harmonia/pkg/tracing"
)

// CharacterReader resolves participant characters scoped to their owner,
// excluding soft-deleted records.
type CharacterReader interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Character, error)
}

// AnalysisWriter persists generated analyses.
type AnalysisWriter interface {
	Create(ctx context.Context, analysis *models.Analysis) error
}

// EventStatusWriter updates an event's analysis status.
type EventStatusWriter interface {
	UpdateAnalysisStatus(ctx context.Context, eventID uuid.UUID, status models.AnalysisStatus) error
}

// Generator produces a structured mediation result from a completion request.
type Generator interface {
	Generate(ctx context.Context, req completion.Request) (models.MediationResult, error)
}

// Publisher emits analysis outcome events.
type Publisher interface {
	PublishAnalysisEvent(ctx context.Context, event *kafka.AnalysisEvent) error
}

// CompletionGenerator backs Generator with the structured completion client.
type CompletionGenerator struct {
	client *completion.Client
}

func NewCompletionGenerator(client *completion.Client) *CompletionGenerator {
	return &CompletionGenerator{client: client}
}

func (g *CompletionGenerator) Generate(ctx context.Context, req completion.Request) (models.MediationResult, error) {
	return completion.Structured[models.MediationResult](ctx, g.client, req)
}

// Config controls the model invocation performed per run.
type Config struct {
	Model       string
	Temperature *float64
	MaxTokens   *int
	Timeout     time.Duration
}

// Orchestrator runs mediation analysis generation as background work that is
// never awaited by the request that triggered it. Outcomes are observable
// only through the event's analysis status and the analyses list.
type Orchestrator struct {
	characters CharacterReader
	analyses   AnalysisWriter
	events     EventStatusWriter
	generator  Generator
	publisher  Publisher
	logger     ectologger.Logger
	config     Config
	wg         sync.WaitGroup
}

func NewOrchestrator(
	characters CharacterReader,
	analyses AnalysisWriter,
	events EventStatusWriter,
	generator Generator,
	publisher Publisher,
	config Config,
	logger ectologger.Logger,
) *Orchestrator {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &Orchestrator{
		characters: characters,
		analyses:   analyses,
		events:     events,
		generator:  generator,
		publisher:  publisher,
		logger:     logger,
		config:     config,
	}
}

// Dispatch starts an analysis run for the event without blocking the caller.
// Context values (user id, trace) are kept but cancellation is detached so
// the run survives the originating request.
func (o *Orchestrator) Dispatch(ctx context.Context, event *models.Event) {
	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Run(runCtx, event)
	}()
}

// Drain waits for in-flight runs to finish, bounded by ctx.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes one analysis attempt for the event. Errors never propagate to
// the caller; they are logged and reflected in the event's status.
func (o *Orchestrator) Run(ctx context.Context, event *models.Event) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "mediation.Orchestrator.Run")
	defer span.End()

	start := time.Now()

	logger := o.logger.WithContext(ctx).WithFields(map[string]any{
		"event_id": event.ID,
	})

	if event.AnalysisStatus.IsTerminal() {
		logger.Warnf("event %s already has terminal analysis status %s, skipping", event.ID, event.AnalysisStatus)
		return
	}

	participantIDs := make([]uuid.UUID, 0, len(event.Participants))
	for _, p := range event.Participants {
		participantIDs = append(participantIDs, p.ID)
	}

	characters, err := o.characters.GetByIDs(ctx, participantIDs)
	if err != nil {
		logger.WithError(err).Error("failed to resolve participants for analysis")
		o.markFailed(ctx, event, "participant lookup failed", start)
		return
	}

	if len(characters) < 2 {
		logger.Warnf("event %s has fewer than 2 resolvable participants, skipping analysis", event.ID)
		metrics.RecordAnalysisRun("skipped", time.Since(start).Seconds())
		return
	}

	prompt := BuildPrompt(event.Description, characters)

	result, err := o.generator.Generate(ctx, completion.Request{
		Model:       o.config.Model,
		Messages:    []completion.Message{{Role: "user", Content: prompt}},
		Schema:      ResultSchema(),
		Temperature: o.config.Temperature,
		MaxTokens:   o.config.MaxTokens,
	})
	if err != nil {
		logger.WithError(err).Error("mediation generation failed")
		o.markFailed(ctx, event, "model call failed", start)
		return
	}

	analysis := &models.Analysis{
		EventID:      event.ID,
		UserID:       event.UserID,
		AnalysisType: models.AnalysisTypeMediation,
		Result:       database.JSONB[models.MediationResult]{Data: result},
	}

	if err := o.analyses.Create(ctx, analysis); err != nil {
		logger.WithError(err).Error("failed to save mediation analysis")
		o.markFailed(ctx, event, "failed to save analysis", start)
		return
	}

	// The analysis insert and the status update are two independent writes.
	// If this one fails the row is kept and the event stays pending.
	if err := o.events.UpdateAnalysisStatus(ctx, event.ID, models.AnalysisStatusCompleted); err != nil {
		logger.WithError(err).Error("analysis saved but status update failed, event left pending")
		return
	}

	metrics.RecordAnalysisRun("completed", time.Since(start).Seconds())
	logger.Infof("mediation analysis completed for event %s", event.ID)

	o.publish(ctx, &kafka.AnalysisEvent{
		EventType:  "analysis.completed",
		EventID:    event.ID,
		UserID:     event.UserID,
		AnalysisID: &analysis.ID,
	})
}

func (o *Orchestrator) markFailed(ctx context.Context, event *models.Event, reason string, start time.Time) {
	metrics.RecordAnalysisRun("failed", time.Since(start).Seconds())

	if err := o.events.UpdateAnalysisStatus(ctx, event.ID, models.AnalysisStatusFailed); err != nil {
		o.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": event.ID,
		}).Error("failed to mark event analysis as failed")
		return
	}

	o.publish(ctx, &kafka.AnalysisEvent{
		EventType: "analysis.failed",
		EventID:   event.ID,
		UserID:    event.UserID,
		Reason:    reason,
	})
}

func (o *Orchestrator) publish(ctx context.Context, event *kafka.AnalysisEvent) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishAnalysisEvent(ctx, event); err != nil {
		o.logger.WithContext(ctx).WithError(err).Warn("failed to publish analysis event")
	}
}
