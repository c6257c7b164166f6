// Package pipeline orchestrates the per-session analysis run: the three
// independent stages launched concurrently behind a barrier, then the
// synthesis stage gated on their durable completion.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rowanhealth/clinsight/internal/history"
	"github.com/rowanhealth/clinsight/internal/models"
	"github.com/rowanhealth/clinsight/internal/reasoning"
	"github.com/rowanhealth/clinsight/internal/retry"
	"github.com/rowanhealth/clinsight/internal/store"
)

// EventType represents the type of progress event.
type EventType string

// EventType constants
const (
	EventRunStart       EventType = "run_start"
	EventRunComplete    EventType = "run_complete"
	EventRunFailed      EventType = "run_failed"
	EventRunCancelled   EventType = "run_cancelled"
	EventStageStart     EventType = "stage_start"
	EventStageComplete  EventType = "stage_complete"
	EventStageSkipped   EventType = "stage_skipped"
	EventStageFailed    EventType = "stage_failed"
	EventBarrierRelease EventType = "barrier_release"
)

// ProgressEvent represents a progress update emitted during a run.
type ProgressEvent struct {
	Type       EventType
	SessionID  string
	Stage      models.Stage
	Status     models.Status
	DurationMs int64
	Err        string
}

// ProgressListener receives progress updates.
type ProgressListener func(event ProgressEvent)

// Runner drives the pipeline for individual sessions. It is safe for
// concurrent use; sessions are processed fully independently except for the
// per-patient serialization of the synthesis stage.
type Runner struct {
	store     store.Store
	client    reasoning.Client
	exec      *retry.Executor
	assembler *history.Assembler
	logger    *slog.Logger

	stageTimeout time.Duration
	runBudget    time.Duration

	patients *patientLocks

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStageTimeout bounds each independent stage's wall clock, retries
// included, so the barrier cannot wait indefinitely.
func WithStageTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.stageTimeout = d
		}
	}
}

// WithRunBudget bounds the total wall clock of one session run.
func WithRunBudget(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.runBudget = d
		}
	}
}

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a pipeline runner.
func NewRunner(st store.Store, client reasoning.Client, exec *retry.Executor, assembler *history.Assembler, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:        st,
		client:       client,
		exec:         exec,
		assembler:    assembler,
		logger:       slog.Default(),
		stageTimeout: 5 * time.Minute,
		runBudget:    15 * time.Minute,
		patients:     newPatientLocks(),
		listeners:    []ProgressListener{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener.
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notify(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Trigger is the single status-guarded entry point for both the automatic
// trigger and manual force-retry. Duplicate triggers are idempotent: the
// compare-and-set on pending → analyzing makes exactly one caller execute
// the run while the others observe the new status and no-op. A failed
// session is reset and re-entered at the failed stage only; stages with a
// durable output are skipped.
func (r *Runner) Trigger(ctx context.Context, sessionID string) error {
	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	switch sess.State.Status {
	case models.StatusComplete:
		return nil
	case models.StatusFailed:
		ok, err := r.store.TransitionStatus(ctx, sessionID, models.StatusFailed, models.StatusPending, "")
		if err != nil {
			return err
		}
		if !ok {
			// A concurrent retry already reset it; let that caller run.
			return nil
		}
	case models.StatusAnalyzed:
		// A previous process stopped at the barrier join point: the
		// independent outputs are durable, only synthesis remains. The
		// analyzed → synthesizing claim still guarantees one synthesizer.
		return r.resume(ctx, sess)
	case models.StatusPending:
		// fall through to the claim below
	default:
		// A run is already in flight for this session.
		r.logger.Debug("trigger ignored, run in flight", "session", sessionID, "status", sess.State.Status)
		return nil
	}

	claimed, err := r.store.TransitionStatus(ctx, sessionID, models.StatusPending, models.StatusAnalyzing, "")
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	return r.run(ctx, sessionID)
}

// ResetStale reverts a session stuck in analyzing or synthesizing by a
// process that died mid-run, so it can be re-triggered. The updated-at guard
// keeps it from yanking a run that is still legitimately in flight; pass
// zero to reset unconditionally.
func (r *Runner) ResetStale(ctx context.Context, sessionID string, olderThan time.Duration) (bool, error) {
	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}

	switch sess.State.Status {
	case models.StatusAnalyzing, models.StatusSynthesizing:
	default:
		return false, fmt.Errorf("session %s is %s; only a running session can be reset", sessionID, sess.State.Status)
	}

	if age := time.Since(sess.State.UpdatedAt); age < olderThan {
		return false, fmt.Errorf("session %s was updated %s ago; a run may still be in flight", sessionID, age.Round(time.Second))
	}

	ok, err := r.store.TransitionStatus(ctx, sessionID, sess.State.Status, models.StatusPending, "")
	if err != nil {
		return false, err
	}
	if ok {
		r.logger.Info("stale run reset", "session", sessionID, "from", sess.State.Status)
	}
	return ok, nil
}

// resume completes a session found in StatusAnalyzed.
func (r *Runner) resume(ctx context.Context, sess *models.Session) error {
	runCtx, cancel := context.WithTimeout(ctx, r.runBudget)
	defer cancel()

	start := time.Now()
	r.notify(ProgressEvent{Type: EventRunStart, SessionID: sess.ID, Status: models.StatusAnalyzed})

	completed, err := r.runSynthesis(runCtx, sess)
	if err != nil {
		return err
	}
	if completed {
		r.notify(ProgressEvent{
			Type:       EventRunComplete,
			SessionID:  sess.ID,
			Status:     models.StatusComplete,
			DurationMs: time.Since(start).Milliseconds(),
		})
	}
	return nil
}

// run executes the claimed session: the session is already in
// StatusAnalyzing and this goroutine owns the run.
func (r *Runner) run(ctx context.Context, sessionID string) error {
	runCtx, cancel := context.WithTimeout(ctx, r.runBudget)
	defer cancel()

	start := time.Now()
	r.notify(ProgressEvent{Type: EventRunStart, SessionID: sessionID, Status: models.StatusAnalyzing})

	sess, err := r.store.GetSession(runCtx, sessionID)
	if err != nil {
		r.revert(sessionID, models.StatusAnalyzing)
		return err
	}

	failedStage, waveErr := r.runIndependentWave(runCtx, sess)
	if waveErr != nil {
		if runCtx.Err() != nil {
			r.cancelRun(sessionID, models.StatusAnalyzing)
			return waveErr
		}
		r.fail(sessionID, models.StatusAnalyzing, failedStage, waveErr)
		return waveErr
	}

	// Barrier release requires the durable completion flags, not just the
	// absence of task errors: a crash between business-logic success and
	// the durable write must not count as complete.
	fresh, err := r.store.GetSession(runCtx, sessionID)
	if err != nil {
		r.revert(sessionID, models.StatusAnalyzing)
		return err
	}
	if !fresh.Outputs.IndependentComplete() {
		err := fmt.Errorf("session %s: stage outputs missing after wave join", sessionID)
		r.fail(sessionID, models.StatusAnalyzing, firstIncompleteStage(&fresh.Outputs), err)
		return err
	}

	now := time.Now().UTC()
	if err := r.store.SetBarrierReleased(runCtx, sessionID, now); err != nil {
		r.revert(sessionID, models.StatusAnalyzing)
		return err
	}
	advanced, err := r.store.TransitionStatus(runCtx, sessionID, models.StatusAnalyzing, models.StatusAnalyzed, "")
	if err != nil {
		return err
	}
	if !advanced {
		// The status changed underneath this run; whoever changed it owns
		// the session now.
		r.logger.Debug("barrier advance lost, session status changed externally", "session", sessionID)
		return nil
	}
	r.notify(ProgressEvent{Type: EventBarrierRelease, SessionID: sessionID, Status: models.StatusAnalyzed})

	completed, err := r.runSynthesis(runCtx, fresh)
	if err != nil {
		return err
	}
	if !completed {
		return nil
	}

	r.notify(ProgressEvent{
		Type:       EventRunComplete,
		SessionID:  sessionID,
		Status:     models.StatusComplete,
		DurationMs: time.Since(start).Milliseconds(),
	})
	return nil
}

// stageTask pairs a stage tag with its operation, so one generic wave
// executor replaces per-stage retry loops.
type stageTask struct {
	stage models.Stage
	run   func(ctx context.Context) (result any, confidence float64, err error)
}

func (r *Runner) stageTasks(sess *models.Session) []stageTask {
	req := &reasoning.StageRequest{SessionID: sess.ID, Transcript: sess.Transcript}
	return []stageTask{
		{models.StageMood, func(ctx context.Context) (any, float64, error) {
			res, err := r.client.AnalyzeMood(ctx, req)
			if err != nil {
				return nil, 0, err
			}
			return res, res.Confidence, nil
		}},
		{models.StageThemes, func(ctx context.Context) (any, float64, error) {
			res, err := r.client.ExtractThemes(ctx, req)
			if err != nil {
				return nil, 0, err
			}
			return res, res.Confidence, nil
		}},
		{models.StageBreakthrough, func(ctx context.Context) (any, float64, error) {
			res, err := r.client.DetectBreakthroughs(ctx, req)
			if err != nil {
				return nil, 0, err
			}
			return res, res.Confidence, nil
		}},
	}
}

// runIndependentWave launches the three independent stages concurrently and
// joins on all of them; it never proceeds on a first success. Stages whose
// output is already durably written are skipped, which is what re-enters a
// manually retried session at the failed stage only. On failure it returns
// the first failed stage in canonical order.
func (r *Runner) runIndependentWave(ctx context.Context, sess *models.Session) (models.Stage, error) {
	type stageResult struct {
		stage models.Stage
		err   error
	}

	tasks := r.stageTasks(sess)
	results := make(chan stageResult, len(tasks))

	var wg sync.WaitGroup
	for _, t := range tasks {
		if sess.Outputs.HasStage(t.stage) {
			r.notify(ProgressEvent{Type: EventStageSkipped, SessionID: sess.ID, Stage: t.stage})
			continue
		}

		wg.Add(1)
		go func(t stageTask) {
			defer wg.Done()
			results <- stageResult{stage: t.stage, err: r.runStage(ctx, sess.ID, t)}
		}(t)
	}

	wg.Wait()
	close(results)

	failures := make(map[models.Stage]error, len(tasks))
	for res := range results {
		if res.err != nil {
			failures[res.stage] = res.err
		}
	}
	if len(failures) == 0 {
		return "", nil
	}

	for _, stage := range models.IndependentStages() {
		if err, ok := failures[stage]; ok {
			return stage, fmt.Errorf("stage %s: %w", stage, err)
		}
	}
	// Unreachable: failures only contains independent stages.
	return "", nil
}

// runStage executes one independent stage under the retry policy with its
// wall-clock timeout. The durable write is part of the attempt: success is
// reported only once the output and its completion timestamp are stored as a
// single atomic unit.
func (r *Runner) runStage(ctx context.Context, sessionID string, t stageTask) error {
	stageCtx, cancel := context.WithTimeout(ctx, r.stageTimeout)
	defer cancel()

	start := time.Now()
	r.notify(ProgressEvent{Type: EventStageStart, SessionID: sessionID, Stage: t.stage})

	_, err := retry.Do(stageCtx, r.exec, sessionID, t.stage, func(ctx context.Context) (struct{}, error) {
		result, confidence, err := t.run(ctx)
		if err != nil {
			return struct{}{}, err
		}
		payload, err := json.Marshal(result)
		if err != nil {
			return struct{}{}, retry.Permanent(fmt.Errorf("marshaling %s output: %w", t.stage, err))
		}
		if err := r.store.PutStageOutput(ctx, sessionID, t.stage, payload, confidence, time.Now().UTC()); err != nil {
			if errors.Is(err, store.ErrOutputExists) {
				// A late write racing a timed-out sibling run; the
				// first durable output stands.
				return struct{}{}, nil
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	event := ProgressEvent{
		Type:       EventStageComplete,
		SessionID:  sessionID,
		Stage:      t.stage,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		event.Type = EventStageFailed
		event.Err = err.Error()
	}
	r.notify(event)
	return err
}

// runSynthesis runs the dependent stage under the per-patient exclusion
// scope: two sessions of the same patient must not synthesize concurrently,
// or each would read a history aggregate missing the other's in-flight
// result. It reports whether this call moved the session to complete; a
// lost claim means another caller owns the session.
func (r *Runner) runSynthesis(ctx context.Context, sess *models.Session) (bool, error) {
	unlock := r.patients.lock(sess.PatientID)
	defer unlock()

	claimed, err := r.store.TransitionStatus(ctx, sess.ID, models.StatusAnalyzed, models.StatusSynthesizing, "")
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	if sess.Outputs.Insights == nil {
		synReq, err := r.assembler.Assemble(ctx, sess)
		if err != nil {
			r.fail(sess.ID, models.StatusSynthesizing, models.StageSynthesis, err)
			return false, err
		}

		insights, err := retry.Do(ctx, r.exec, sess.ID, models.StageSynthesis, func(ctx context.Context) (*models.SessionInsights, error) {
			return r.client.Synthesize(ctx, synReq)
		})
		if err != nil {
			if ctx.Err() != nil {
				r.cancelRun(sess.ID, models.StatusSynthesizing)
				return false, err
			}
			r.fail(sess.ID, models.StatusSynthesizing, models.StageSynthesis, err)
			return false, err
		}

		payload, err := json.Marshal(insights)
		if err != nil {
			r.fail(sess.ID, models.StatusSynthesizing, models.StageSynthesis, err)
			return false, err
		}
		err = r.store.PutStageOutput(ctx, sess.ID, models.StageSynthesis, payload, insights.Confidence, time.Now().UTC())
		if err != nil && !errors.Is(err, store.ErrOutputExists) {
			r.fail(sess.ID, models.StatusSynthesizing, models.StageSynthesis, err)
			return false, err
		}
	}

	fresh, err := r.store.GetSession(ctx, sess.ID)
	if err != nil {
		return false, err
	}
	if err := r.store.SetOverallConfidence(ctx, sess.ID, overallConfidence(&fresh.Outputs)); err != nil {
		return false, err
	}

	return r.store.TransitionStatus(ctx, sess.ID, models.StatusSynthesizing, models.StatusComplete, "")
}

// fail moves the session to StatusFailed tagged with the failing stage.
// Outputs of stages that already succeeded remain stored and queryable.
func (r *Runner) fail(sessionID string, from models.Status, stage models.Stage, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := r.store.TransitionStatus(ctx, sessionID, from, models.StatusFailed, stage); err != nil {
		r.logger.Error("recording failure", "session", sessionID, "stage", stage, "error", err)
	}
	r.logger.Warn("session run failed", "session", sessionID, "stage", stage, "error", cause)
	r.notify(ProgressEvent{
		Type:      EventRunFailed,
		SessionID: sessionID,
		Stage:     stage,
		Status:    models.StatusFailed,
		Err:       cause.Error(),
	})
}

// cancelRun reverts a cancelled run to StatusPending for external re-trigger.
func (r *Runner) cancelRun(sessionID string, from models.Status) {
	r.revert(sessionID, from)
	r.notify(ProgressEvent{Type: EventRunCancelled, SessionID: sessionID, Status: models.StatusPending})
}

// revert uses a fresh context: the run context is typically already dead
// when a revert is needed.
func (r *Runner) revert(sessionID string, from models.Status) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := r.store.TransitionStatus(ctx, sessionID, from, models.StatusPending, ""); err != nil {
		r.logger.Error("reverting status", "session", sessionID, "from", from, "error", err)
	}
}

func firstIncompleteStage(out *models.StageOutputs) models.Stage {
	for _, stage := range models.IndependentStages() {
		if !out.HasStage(stage) {
			return stage
		}
	}
	return models.StageSynthesis
}

// overallConfidence averages the confidences of all stored outputs.
func overallConfidence(out *models.StageOutputs) float64 {
	var sum float64
	var n int
	if out.Mood != nil {
		sum += out.Mood.Confidence
		n++
	}
	if out.Themes != nil {
		sum += out.Themes.Confidence
		n++
	}
	if out.Breakthrough != nil {
		sum += out.Breakthrough.Confidence
		n++
	}
	if out.Insights != nil {
		sum += out.Insights.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return models.ClampConfidence(sum / float64(n))
}
