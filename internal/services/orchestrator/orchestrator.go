package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/Egham-7/repurpose-api/internal/services/backend"
	"github.com/Egham-7/repurpose-api/internal/services/generations"
	"github.com/Egham-7/repurpose-api/internal/services/quota"
	"github.com/Egham-7/repurpose-api/internal/services/transcript"
	"github.com/Egham-7/repurpose-api/internal/services/usage"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"
)

// creditsPerGeneration is charged once per accepted request, independent of the output type count.
const creditsPerGeneration = 1

const defaultMaxConcurrency = 4

// Request is one /api/generate call before validation.
type Request struct {
	SourceURL   string   `json:"sourceUrl"`
	SourceText  string   `json:"sourceText"`
	SourceType  string   `json:"sourceType"`
	OutputTypes []string `json:"outputTypes"`
}

// Result is a generation that produced at least one output.
type Result struct {
	GenerationID     string
	Status           models.GenerationStatus
	Outputs          map[models.OutputType]string
	Failed           map[models.OutputType]string
	CreditsRemaining int
}

// Partial reports whether some requested types have no output.
func (r *Result) Partial() bool {
	return len(r.Failed) > 0
}

type Options struct {
	Evaluator      *quota.Evaluator
	Extractor      transcript.Extractor
	Backend        backend.Backend
	Generations    *generations.Service
	Credits        *usage.CreditsService
	Recorder       usage.Recorder
	MaxConcurrency int
}

type Orchestrator struct {
	evaluator      *quota.Evaluator
	extractor      transcript.Extractor
	backend        backend.Backend
	generations    *generations.Service
	credits        *usage.CreditsService
	recorder       usage.Recorder
	maxConcurrency int
}

func New(opts Options) *Orchestrator {
	if opts.Evaluator == nil {
		opts.Evaluator = quota.NewEvaluator(nil)
	}
	if opts.Extractor == nil {
		opts.Extractor = transcript.ReferenceExtractor{}
	}
	if opts.Backend == nil {
		opts.Backend = backend.NewFallbackBackend()
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}

	return &Orchestrator{
		evaluator:      opts.Evaluator,
		extractor:      opts.Extractor,
		backend:        opts.Backend,
		generations:    opts.Generations,
		credits:        opts.Credits,
		recorder:       opts.Recorder,
		maxConcurrency: opts.MaxConcurrency,
	}
}

// Admit runs the checks that precede request validation: an authenticated caller with
// at least one credit left. A pass is a hint; the charge itself is checked again on commit.
func (o *Orchestrator) Admit(user *models.User) error {
	if user == nil {
		return models.NewUnauthenticatedError()
	}

	check := o.evaluator.Evaluate(user, creditsPerGeneration)
	if !check.Allowed {
		return models.NewQuotaExceededError(check.Remaining, check.Limit)
	}
	return nil
}

// Generate runs one metered generation. Errors are *models.AppError.
func (o *Orchestrator) Generate(ctx context.Context, user *models.User, req Request) (*Result, error) {
	if err := o.Admit(user); err != nil {
		return nil, err
	}

	sourceText := strings.TrimSpace(req.SourceText)
	sourceURL := strings.TrimSpace(req.SourceURL)
	if sourceText == "" && sourceURL == "" {
		return nil, models.NewValidationError("missing source", nil)
	}
	if len(req.OutputTypes) == 0 {
		return nil, models.NewValidationError("missing output types", nil)
	}

	outputTypes, err := models.ParseOutputTypes(req.OutputTypes)
	if err != nil {
		return nil, models.NewValidationError(err.Error(), err)
	}
	sourceType, err := models.ParseSourceType(req.SourceType)
	if err != nil {
		return nil, models.NewValidationError(err.Error(), err)
	}

	text := sourceText
	if text == "" {
		text, err = o.extractor.Extract(ctx, sourceURL, sourceType)
		if err != nil {
			fiberlog.Errorf("Transcript extraction failed for %s: %v", sourceURL, err)
			return nil, models.NewExtractionError(err)
		}
	}

	generation, err := o.generations.Create(ctx, generations.CreateParams{
		UserID:      user.ID,
		SourceType:  sourceType,
		SourceURL:   sourceURL,
		Transcript:  text,
		OutputTypes: outputTypes,
	})
	if err != nil {
		fiberlog.Errorf("Failed to create generation for user %s: %v", user.ID, err)
		return nil, models.NewPersistenceError(err)
	}

	produced := o.produceAll(ctx, generation.ID, text, outputTypes)
	if len(produced.outputs) == 0 {
		o.setStatus(ctx, generation.ID, models.GenerationFailed)
		return nil, produced.appError(o.backend.Name())
	}

	limit := check.Limit
	consumed, err := o.credits.Consume(ctx, models.ConsumeCreditsParams{
		UserID: user.ID,
		Amount: creditsPerGeneration,
		Limit:  limit,
		Action: models.UsageActionGenerate,
		Metadata: models.Metadata{
			"generation_id": generation.ID,
			"output_types":  outputTypes,
			"source_type":   sourceType,
			"partial":       len(produced.failed) > 0,
		},
	})
	if errors.Is(err, usage.ErrQuotaExceeded) {
		o.setStatus(ctx, generation.ID, models.GenerationQuotaExceeded)
		return nil, models.NewQuotaExceededError(consumed.Remaining(), limit)
	}
	if err != nil {
		fiberlog.Errorf("[%s] Failed to commit credits: %v", generation.ID, err)
		o.setStatus(ctx, generation.ID, models.GenerationFailed)
		return nil, models.NewPersistenceError(err)
	}

	status := models.GenerationCompleted
	if len(produced.failed) > 0 {
		status = models.GenerationPartial
	}
	o.setStatus(ctx, generation.ID, status)

	return &Result{
		GenerationID:     generation.ID,
		Status:           status,
		Outputs:          produced.outputs,
		Failed:           produced.failed,
		CreditsRemaining: consumed.Remaining(),
	}, nil
}

// Retry produces the missing outputs of a partial generation without charging again.
// An empty types list retries every missing type. Only one retry of a generation runs at a time.
func (o *Orchestrator) Retry(ctx context.Context, user *models.User, generationID string, types []string) (*Result, error) {
	if user == nil {
		return nil, models.NewUnauthenticatedError()
	}

	generation, err := o.generations.Get(ctx, user.ID, generationID)
	if err != nil {
		return nil, generationLookupError(err)
	}
	if err := retryStateError(generation.Status); err != nil {
		return nil, err
	}

	var requested []models.OutputType
	if len(types) > 0 {
		requested, err = models.ParseOutputTypes(types)
		if err != nil {
			return nil, models.NewValidationError(err.Error(), err)
		}
	}

	if err := o.generations.ClaimRetry(ctx, user.ID, generation.ID); err != nil {
		if !errors.Is(err, generations.ErrNotClaimed) {
			return nil, models.NewPersistenceError(err)
		}
		current, getErr := o.generations.Get(ctx, user.ID, generation.ID)
		if getErr != nil {
			return nil, generationLookupError(getErr)
		}
		if stateErr := retryStateError(current.Status); stateErr != nil {
			return nil, stateErr
		}
		return nil, models.NewConflictError("generation is already being retried")
	}

	// The claim is released on every path; final is the status it is released to.
	claimedID := generation.ID
	final := models.GenerationPartial
	defer func() { o.setStatus(ctx, claimedID, final) }()

	// Reload under the claim so outputs written by an earlier retry are visible.
	generation, err = o.generations.Get(ctx, user.ID, claimedID)
	if err != nil {
		return nil, generationLookupError(err)
	}

	missing := generation.MissingOutputTypes()
	if len(missing) == 0 {
		final = models.GenerationCompleted
		return o.retryResult(ctx, user, generation, nil, nil), nil
	}

	targets := missing
	if len(requested) > 0 {
		isMissing := make(map[models.OutputType]bool, len(missing))
		for _, t := range missing {
			isMissing[t] = true
		}
		for _, t := range requested {
			if !isMissing[t] {
				return nil, models.NewValidationError(fmt.Sprintf("output type %s already has content", t), nil)
			}
		}
		targets = requested
	}

	produced := o.produceAll(ctx, generation.ID, generation.Transcript, targets)
	if len(produced.outputs) == 0 {
		return nil, produced.appError(o.backend.Name())
	}

	if o.recorder != nil {
		o.recorder.Record(ctx, models.RecordUsageParams{
			UserID:  user.ID,
			Action:  models.UsageActionGenerateRetry,
			Credits: 0,
			Metadata: models.Metadata{
				"generation_id": generation.ID,
				"output_types":  targets,
			},
		}, generation.ID)
	}

	result := o.retryResult(ctx, user, generation, produced.outputs, produced.failed)
	final = result.Status
	return result, nil
}

// retryResult merges stored and newly produced outputs. Types still without content are
// reported as failed, with "not retried" for those that were not attempted.
func (o *Orchestrator) retryResult(ctx context.Context, user *models.User, generation *models.Generation, produced, producedFailed map[models.OutputType]string) *Result {
	outputs := make(map[models.OutputType]string, len(generation.OutputTypes))
	for _, out := range generation.Outputs {
		outputs[out.OutputType] = out.Content
	}
	for t, content := range produced {
		outputs[t] = content
	}

	failed := make(map[models.OutputType]string)
	for _, t := range generation.OutputTypes {
		if _, ok := outputs[t]; ok {
			continue
		}
		if msg, ok := producedFailed[t]; ok {
			failed[t] = msg
		} else {
			failed[t] = "not retried"
		}
	}

	status := models.GenerationPartial
	if len(failed) == 0 {
		status = models.GenerationCompleted
	}

	used, err := o.credits.GetCreditsUsed(ctx, user.ID)
	if err != nil {
		fiberlog.Errorf("[%s] Failed to read credits after retry: %v", generation.ID, err)
		used = user.CreditsUsed
	}

	return &Result{
		GenerationID:     generation.ID,
		Status:           status,
		Outputs:          outputs,
		Failed:           failed,
		CreditsRemaining: o.evaluator.Limit(user.Plan) - used,
	}
}

func generationLookupError(err error) error {
	if errors.Is(err, generations.ErrNotFound) {
		return models.NewNotFoundError("generation")
	}
	return models.NewPersistenceError(err)
}

func retryStateError(status models.GenerationStatus) error {
	switch status {
	case models.GenerationPartial:
		return nil
	case models.GenerationRetrying:
		return models.NewConflictError("generation is already being retried")
	default:
		return models.NewValidationError("only partially failed generations can be retried", nil)
	}
}

type production struct {
	outputs map[models.OutputType]string
	failed  map[models.OutputType]string
	errs    []error
}

// produceAll calls the backend once per type with bounded concurrency and stores each output
// as it completes. Failures never cancel the other calls.
func (o *Orchestrator) produceAll(ctx context.Context, generationID, text string, outputTypes []models.OutputType) *production {
	p := &production{
		outputs: make(map[models.OutputType]string, len(outputTypes)),
		failed:  make(map[models.OutputType]string),
	}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(o.maxConcurrency)

	for _, outputType := range outputTypes {
		g.Go(func() error {
			content, err := o.backend.Produce(ctx, text, outputType)
			if err == nil {
				_, err = o.generations.SaveOutput(ctx, generationID, outputType, content)
			}
			if errors.Is(err, generations.ErrOutputExists) {
				var stored *models.Output
				if stored, err = o.generations.GetOutput(ctx, generationID, outputType); err == nil {
					content = stored.Content
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fiberlog.Errorf("[%s] %s output failed: %v", generationID, outputType, err)
				p.failed[outputType] = failureMessage(err)
				p.errs = append(p.errs, err)
				return nil
			}
			p.outputs[outputType] = content
			return nil
		})
	}
	_ = g.Wait()

	return p
}

// appError converts a production with zero outputs into the client-facing failure.
func (p *production) appError(backendName string) *models.AppError {
	allUnavailable := len(p.errs) > 0
	for _, err := range p.errs {
		if !errors.Is(err, backend.ErrUnavailable) {
			allUnavailable = false
			break
		}
	}
	if allUnavailable {
		return models.NewBackendUnavailableError(backendName)
	}
	return models.NewUpstreamError(p.failed, errors.Join(p.errs...))
}

// failureMessage is the per-type message sent to clients. Details stay in the logs.
func failureMessage(err error) string {
	var upstream *backend.UpstreamError
	switch {
	case errors.Is(err, backend.ErrUnavailable):
		return "generation backend unavailable"
	case errors.As(err, &upstream) && upstream.StatusCode > 0:
		return fmt.Sprintf("generation backend returned status %d", upstream.StatusCode)
	case errors.As(err, &upstream):
		return "generation backend returned no content"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "generation timed out"
	default:
		return "generation failed"
	}
}

func (o *Orchestrator) setStatus(ctx context.Context, generationID string, status models.GenerationStatus) {
	if err := o.generations.SetStatus(context.WithoutCancel(ctx), generationID, status); err != nil {
		fiberlog.Errorf("[%s] Failed to set status %s: %v", generationID, status, err)
	}
}
