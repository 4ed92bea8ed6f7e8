package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/Egham-7/repurpose-api/internal/services/backend"
	"github.com/Egham-7/repurpose-api/internal/services/generations"
	"github.com/Egham-7/repurpose-api/internal/services/quota"
	"github.com/Egham-7/repurpose-api/internal/services/usage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// scriptedBackend fails for the configured types and counts calls.
type scriptedBackend struct {
	mu    sync.Mutex
	fail  map[models.OutputType]error
	calls map[models.OutputType]int
}

func newScriptedBackend() *scriptedBackend {
	return &scriptedBackend{fail: map[models.OutputType]error{}, calls: map[models.OutputType]int{}}
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Produce(_ context.Context, transcript string, t models.OutputType) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[t]++
	if err, ok := b.fail[t]; ok {
		return "", err
	}
	return fmt.Sprintf("%s for %s", t, transcript), nil
}

func (b *scriptedBackend) setFailure(t models.OutputType, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.fail, t)
		return
	}
	b.fail[t] = err
}

type fixture struct {
	db          *gorm.DB
	orch        *Orchestrator
	backend     *scriptedBackend
	generations *generations.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "orchestrator.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate users: %v", err)
	}
	gens := generations.NewService(db)
	if err := gens.AutoMigrate(); err != nil {
		t.Fatalf("migrate generations: %v", err)
	}
	usageSvc := usage.NewService(db)
	if err := usageSvc.AutoMigrate(); err != nil {
		t.Fatalf("migrate usage: %v", err)
	}

	b := newScriptedBackend()
	return &fixture{
		db:      db,
		backend: b,
		orch: New(Options{
			Evaluator:   quota.NewEvaluator(nil),
			Backend:     b,
			Generations: gens,
			Credits:     usage.NewCreditsService(db),
			Recorder:    usageSvc,
		}),
		generations: gens,
	}
}

func (f *fixture) createUser(t *testing.T, id string, used int) {
	t.Helper()
	u := models.User{ID: id, Email: id + "@example.com", Name: id, PasswordHash: "x", Plan: models.PlanFree, CreditsUsed: used}
	if err := f.db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
}

// loadUser mirrors the session middleware: each request sees the stored row.
func (f *fixture) loadUser(t *testing.T, id string) *models.User {
	t.Helper()
	var u models.User
	if err := f.db.Where("id = ?", id).Take(&u).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return &u
}

func (f *fixture) countLogs(t *testing.T, action models.UsageAction) int64 {
	t.Helper()
	var n int64
	f.db.Model(&models.UsageLog{}).Where("action = ?", action).Count(&n)
	return n
}

func appError(t *testing.T, err error) *models.AppError {
	t.Helper()
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error %v is not an AppError", err)
	}
	return appErr
}

func TestGenerateChargesOneCreditRegardlessOfTypeCount(t *testing.T) {
	for _, types := range [][]string{{"hooks"}, allTypeNames()} {
		t.Run(fmt.Sprintf("%d types", len(types)), func(t *testing.T) {
			f := newFixture(t)
			f.createUser(t, "u1", 0)

			res, err := f.orch.Generate(context.Background(), f.loadUser(t, "u1"), Request{SourceText: "my talk", OutputTypes: types})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(res.Outputs) != len(types) || res.Partial() {
				t.Fatalf("outputs = %d, failed = %v", len(res.Outputs), res.Failed)
			}
			if res.CreditsRemaining != 4 {
				t.Fatalf("creditsRemaining = %d, want 4", res.CreditsRemaining)
			}
			if used := f.loadUser(t, "u1").CreditsUsed; used != 1 {
				t.Fatalf("credits_used = %d, want 1", used)
			}
			if n := f.countLogs(t, models.UsageActionGenerate); n != 1 {
				t.Fatalf("usage logs = %d, want 1", n)
			}

			g, err := f.generations.Get(context.Background(), "u1", res.GenerationID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if g.Status != models.GenerationCompleted || len(g.Outputs) != len(types) {
				t.Fatalf("stored generation = %+v", g)
			}
		})
	}
}

func TestGenerateLastCreditThenQuotaExceeded(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "u1", 4)
	req := Request{SourceText: "episode notes", OutputTypes: []string{"hooks", "hashtags"}}

	res, err := f.orch.Generate(context.Background(), f.loadUser(t, "u1"), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Outputs) != 2 || res.CreditsRemaining != 0 {
		t.Fatalf("result = %+v", res)
	}

	_, err = f.orch.Generate(context.Background(), f.loadUser(t, "u1"), req)
	appErr := appError(t, err)
	if appErr.Type != models.ErrorTypeQuotaExceeded || appErr.Remaining != 0 || appErr.Limit != 5 {
		t.Fatalf("second call error = %+v", appErr)
	}
	if appErr.GetStatusCode() != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", appErr.GetStatusCode())
	}
}

func TestGeneratePreconditionOrder(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "full", 5)
	f.createUser(t, "ok", 0)

	tests := []struct {
		name string
		user string
		req  Request
		want models.ErrorType
		msg  string
	}{
		{"anonymous", "", Request{}, models.ErrorTypeAuthentication, ""},
		{"quota before validation", "full", Request{}, models.ErrorTypeQuotaExceeded, ""},
		{"missing source", "ok", Request{OutputTypes: []string{"hooks"}}, models.ErrorTypeValidation, "missing source"},
		{"missing output types", "ok", Request{SourceText: "x"}, models.ErrorTypeValidation, "missing output types"},
		{"unknown output type", "ok", Request{SourceText: "x", OutputTypes: []string{"haiku"}}, models.ErrorTypeValidation, "unknown output type: haiku"},
		{"unknown source type", "ok", Request{SourceText: "x", SourceType: "vhs", OutputTypes: []string{"hooks"}}, models.ErrorTypeValidation, "unknown source type: vhs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var user *models.User
			if tt.user != "" {
				user = f.loadUser(t, tt.user)
			}
			_, err := f.orch.Generate(context.Background(), user, tt.req)
			appErr := appError(t, err)
			if appErr.Type != tt.want {
				t.Fatalf("type = %s, want %s", appErr.Type, tt.want)
			}
			if tt.msg != "" && appErr.Message != tt.msg {
				t.Fatalf("message = %q, want %q", appErr.Message, tt.msg)
			}
		})
	}

	var count int64
	f.db.Model(&models.Generation{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected requests created %d generations", count)
	}
}

func TestGenerateUsesReferenceTranscriptForURL(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "u1", 0)

	res, err := f.orch.Generate(context.Background(), f.loadUser(t, "u1"), Request{
		SourceURL:   "https://youtu.be/abc",
		SourceType:  "youtube",
		OutputTypes: []string{"hooks"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := res.Outputs[models.OutputHooks]; got != "hooks for Content from: https://youtu.be/abc" {
		t.Fatalf("output = %q", got)
	}
}

func TestGenerateZeroOutputsIsNotCharged(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "u1", 0)
	f.backend.setFailure(models.OutputHooks, &backend.UpstreamError{Backend: "scripted", StatusCode: 500, Message: "boom"})

	_, err := f.orch.Generate(context.Background(), f.loadUser(t, "u1"), Request{SourceText: "x", OutputTypes: []string{"hooks"}})
	appErr := appError(t, err)
	if appErr.Type != models.ErrorTypeUpstream {
		t.Fatalf("type = %s, want upstream", appErr.Type)
	}
	if appErr.Failed[models.OutputHooks] != "generation backend returned status 500" {
		t.Fatalf("failed = %v", appErr.Failed)
	}
	if used := f.loadUser(t, "u1").CreditsUsed; used != 0 {
		t.Fatalf("credits_used = %d, want 0", used)
	}

	var g models.Generation
	f.db.Take(&g)
	if g.Status != models.GenerationFailed {
		t.Fatalf("status = %s, want failed", g.Status)
	}
}

func TestGenerateAllUnavailableIsBackendUnavailable(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "u1", 0)
	f.backend.setFailure(models.OutputHooks, fmt.Errorf("%w: dial tcp", backend.ErrUnavailable))

	_, err := f.orch.Generate(context.Background(), f.loadUser(t, "u1"), Request{SourceText: "x", OutputTypes: []string{"hooks"}})
	if appErr := appError(t, err); appErr.GetStatusCode() != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", appErr.GetStatusCode())
	}
}

func TestPartialGenerationThenRetryWithoutRecharge(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "u1", 0)
	f.backend.setFailure(models.OutputHashtags, &backend.UpstreamError{Backend: "scripted", Message: "upstream returned no choice"})

	res, err := f.orch.Generate(context.Background(), f.loadUser(t, "u1"), Request{SourceText: "x", OutputTypes: []string{"hooks", "hashtags"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.Partial() || res.Status != models.GenerationPartial {
		t.Fatalf("expected partial result, got %+v", res)
	}
	if _, ok := res.Failed[models.OutputHashtags]; !ok {
		t.Fatalf("failed = %v", res.Failed)
	}
	if res.CreditsRemaining != 4 {
		t.Fatalf("creditsRemaining = %d, want 4", res.CreditsRemaining)
	}

	// Retrying a type that already has content is rejected.
	if _, err := f.orch.Retry(context.Background(), f.loadUser(t, "u1"), res.GenerationID, []string{"hooks"}); appError(t, err).Type != models.ErrorTypeValidation {
		t.Fatalf("retry of stored type should be a validation error, got %v", err)
	}

	f.backend.setFailure(models.OutputHashtags, nil)
	retried, err := f.orch.Retry(context.Background(), f.loadUser(t, "u1"), res.GenerationID, nil)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if retried.Partial() || retried.Status != models.GenerationCompleted || len(retried.Outputs) != 2 {
		t.Fatalf("retry result = %+v", retried)
	}
	if retried.CreditsRemaining != 4 {
		t.Fatalf("creditsRemaining after retry = %d, want 4", retried.CreditsRemaining)
	}
	if f.backend.calls[models.OutputHooks] != 1 {
		t.Fatalf("hooks produced %d times, want 1", f.backend.calls[models.OutputHooks])
	}
	if used := f.loadUser(t, "u1").CreditsUsed; used != 1 {
		t.Fatalf("credits_used = %d, want 1", used)
	}
	if n := f.countLogs(t, models.UsageActionGenerateRetry); n != 1 {
		t.Fatalf("retry logs = %d, want 1", n)
	}

	if _, err := f.orch.Retry(context.Background(), f.loadUser(t, "u1"), res.GenerationID, nil); appError(t, err).Type != models.ErrorTypeValidation {
		t.Fatalf("completed generation should not be retryable, got %v", err)
	}
}

func TestRetryOtherUsersGenerationIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "u1", 0)
	f.createUser(t, "u2", 0)
	f.backend.setFailure(models.OutputHashtags, errors.New("boom"))

	res, err := f.orch.Generate(context.Background(), f.loadUser(t, "u1"), Request{SourceText: "x", OutputTypes: []string{"hooks", "hashtags"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	_, err = f.orch.Retry(context.Background(), f.loadUser(t, "u2"), res.GenerationID, nil)
	if appError(t, err).Type != models.ErrorTypeNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestConcurrentRetriesProduceOnce(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "u1", 0)
	f.backend.setFailure(models.OutputHashtags, errors.New("boom"))

	res, err := f.orch.Generate(context.Background(), f.loadUser(t, "u1"), Request{SourceText: "x", OutputTypes: []string{"hooks", "hashtags"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	f.backend.setFailure(models.OutputHashtags, nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			retried, err := f.orch.Retry(context.Background(), f.loadUser(t, "u1"), res.GenerationID, nil)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				if retried.Status != models.GenerationCompleted || len(retried.Outputs) != 2 {
					t.Errorf("retry result = %+v", retried)
				}
				successes++
				return
			}
			// Losers see either the claim held by another caller or the finished generation.
			var appErr *models.AppError
			if !errors.As(err, &appErr) || (appErr.Type != models.ErrorTypeConflict && appErr.Type != models.ErrorTypeValidation) {
				t.Errorf("unexpected retry error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successes = %d, want 1", successes)
	}
	if calls := f.backend.calls[models.OutputHashtags]; calls != 2 {
		t.Fatalf("hashtags produced %d times, want 2 (initial failure plus one retry)", calls)
	}
	if n := f.countLogs(t, models.UsageActionGenerateRetry); n != 1 {
		t.Fatalf("retry logs = %d, want 1", n)
	}

	g, err := f.generations.Get(context.Background(), "u1", res.GenerationID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if g.Status != models.GenerationCompleted || len(g.Outputs) != 2 {
		t.Fatalf("stored generation status=%s outputs=%d", g.Status, len(g.Outputs))
	}
}

func TestRetryWhileClaimedIsConflict(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "u1", 0)
	f.backend.setFailure(models.OutputHashtags, errors.New("boom"))

	res, err := f.orch.Generate(context.Background(), f.loadUser(t, "u1"), Request{SourceText: "x", OutputTypes: []string{"hooks", "hashtags"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := f.generations.ClaimRetry(context.Background(), "u1", res.GenerationID); err != nil {
		t.Fatalf("ClaimRetry: %v", err)
	}

	_, err = f.orch.Retry(context.Background(), f.loadUser(t, "u1"), res.GenerationID, nil)
	if appErr := appError(t, err); appErr.GetStatusCode() != http.StatusConflict {
		t.Fatalf("status = %d, want 409", appErr.GetStatusCode())
	}
}

func TestRetryReleasesClaimWhenBackendFails(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "u1", 0)
	f.backend.setFailure(models.OutputHashtags, errors.New("boom"))

	res, err := f.orch.Generate(context.Background(), f.loadUser(t, "u1"), Request{SourceText: "x", OutputTypes: []string{"hooks", "hashtags"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := f.orch.Retry(context.Background(), f.loadUser(t, "u1"), res.GenerationID, nil); appError(t, err).Type != models.ErrorTypeUpstream {
		t.Fatalf("err = %v, want upstream", err)
	}

	g, err := f.generations.Get(context.Background(), "u1", res.GenerationID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if g.Status != models.GenerationPartial {
		t.Fatalf("status after failed retry = %s, want partial", g.Status)
	}
}

func TestRetryWithNothingMissingCompletes(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "u1", 0)
	f.backend.setFailure(models.OutputHashtags, errors.New("boom"))

	res, err := f.orch.Generate(context.Background(), f.loadUser(t, "u1"), Request{SourceText: "x", OutputTypes: []string{"hooks", "hashtags"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// Another writer stored the missing output while the status still reads partial.
	if _, err := f.generations.SaveOutput(context.Background(), res.GenerationID, models.OutputHashtags, "stored"); err != nil {
		t.Fatalf("SaveOutput: %v", err)
	}

	retried, err := f.orch.Retry(context.Background(), f.loadUser(t, "u1"), res.GenerationID, nil)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if retried.Status != models.GenerationCompleted || retried.Outputs[models.OutputHashtags] != "stored" || len(retried.Failed) != 0 {
		t.Fatalf("retry result = %+v", retried)
	}
	if calls := f.backend.calls[models.OutputHashtags]; calls != 1 {
		t.Fatalf("hashtags produced %d times, want 1", calls)
	}
}

func TestConcurrentGenerateWithOneCreditLeft(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "u1", 4)

	// Both requests load the user before either commits, so both pass the hint check.
	users := []*models.User{f.loadUser(t, "u1"), f.loadUser(t, "u1")}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for _, u := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.Generate(context.Background(), u, Request{SourceText: "x", OutputTypes: []string{"hooks"}})
			mu.Lock()
			defer mu.Unlock()
			var appErr *models.AppError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &appErr) && appErr.Type == models.ErrorTypeQuotaExceeded:
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || rejected != 1 {
		t.Fatalf("successes = %d, rejected = %d; want 1 and 1", successes, rejected)
	}
	if used := f.loadUser(t, "u1").CreditsUsed; used != 5 {
		t.Fatalf("credits_used = %d, want 5", used)
	}

	var quotaRejected int64
	f.db.Model(&models.Generation{}).Where("status = ?", models.GenerationQuotaExceeded).Count(&quotaRejected)
	if quotaRejected != 1 {
		t.Fatalf("quota_exceeded generations = %d, want 1", quotaRejected)
	}
}

func allTypeNames() []string {
	var names []string
	for _, t := range models.AllOutputTypes() {
		names = append(names, string(t))
	}
	return names
}
