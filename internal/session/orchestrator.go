package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"analyst/internal/cache"
	"analyst/internal/config"
	"analyst/internal/llm"
	"analyst/internal/loader"
	"analyst/internal/parse"
	"analyst/internal/sandbox"
)

// Orchestrator drives the model/execute feedback loop for one question at a
// time. It is safe for concurrent use; each Run gets its own session state.
type Orchestrator struct {
	client   llm.Client
	parser   *parse.Parser
	executor sandbox.Executor
	store    *cache.Store
	cfg      *config.Config
	logger   *zap.Logger
	newID    func() string
}

// New creates an orchestrator. store may be nil to disable caching.
func New(client llm.Client, parser *parse.Parser, executor sandbox.Executor,
	store *cache.Store, cfg *config.Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		client:   client,
		parser:   parser,
		executor: executor,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Run answers one question over the staged files. It returns a Result in
// every case; the error classifies why a session ended without an answer.
func (o *Orchestrator) Run(ctx context.Context, question string, files []loader.File) (*Result, error) {
	start := time.Now()
	result := &Result{SessionID: o.newID()}
	logger := o.logger.With(zap.String("session", result.SessionID))
	defer func() { result.Duration = time.Since(start) }()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Session.GetBudget())
	defer cancel()

	system := buildSystemPrompt(o.cfg.LLM.SpecialistNames())
	task := buildTaskPrompt(question, files)
	hist := newHistory(o.cfg.Session.HistoryCharBudget, o.cfg.Session.RecentTurnWindow)
	contents := loader.Contents(files)
	digests := loader.Digests(files)

	logger.Info("session started",
		zap.Int("files", len(files)),
		zap.Int("max_rounds", o.cfg.Session.MaxRounds))

	parseFailures := 0
	for round := 1; round <= o.cfg.Session.MaxRounds; round++ {
		if err := o.checkBudget(ctx); err != nil {
			return result, err
		}

		raw, err := o.complete(ctx, renderPrompt(task, hist), llm.Options{System: system})
		if err != nil {
			if budgetErr := o.checkBudget(ctx); budgetErr != nil {
				return result, budgetErr
			}
			return result, fmt.Errorf("round %d: %w", round, err)
		}

		rec := Round{Index: round, Raw: raw}
		hist.addModel(round, raw)

		action, parseErr := o.parser.Parse(raw)
		if parseErr != nil {
			parseFailures++
			logger.Warn("unparsable model response",
				zap.Int("round", round),
				zap.Int("consecutive", parseFailures),
				zap.Error(parseErr))
			if parseFailures >= o.cfg.Session.MaxParseFailures {
				result.Rounds = append(result.Rounds, rec)
				return result, fmt.Errorf("%w: %v", ErrParseFailures, parseErr)
			}
			rec.Feedback = parseFailureFeedback(parseErr.Error())
			hist.addObservation("Engine feedback", rec.Feedback)
			result.Rounds = append(result.Rounds, rec)
			continue
		}
		parseFailures = 0
		rec.Action = action

		switch a := action.(type) {
		case parse.FinalAnswerAction:
			result.Answer = a.Text
			result.Rounds = append(result.Rounds, rec)
			logger.Info("session answered", zap.Int("rounds", round))
			return result, nil

		case parse.DelegationAction:
			reply, err := o.delegate(ctx, a, system)
			if err != nil {
				if budgetErr := o.checkBudget(ctx); budgetErr != nil {
					result.Rounds = append(result.Rounds, rec)
					return result, budgetErr
				}
				logger.Warn("specialist call failed",
					zap.String("specialist", a.Specialist), zap.Error(err))
				reply = fmt.Sprintf("specialist %s unavailable: %v", a.Specialist, err)
			}
			rec.Feedback = reply
			hist.addObservation(fmt.Sprintf("Specialist %s response", a.Specialist), reply)

		case parse.CodeAction:
			outcome, err := o.execute(ctx, a.Code, contents, digests)
			if err != nil {
				result.Rounds = append(result.Rounds, rec)
				return result, fmt.Errorf("round %d: %w", round, err)
			}
			if outcome.Status.Fatal() {
				result.Rounds = append(result.Rounds, rec)
				return result, fmt.Errorf("%w: %s", ErrSandboxFailure, outcome.Error)
			}
			rec.Outcome = outcome
			result.Artifacts = append(result.Artifacts, outcome.Artifacts...)
			rec.Feedback = formatExecutionFeedback(outcome)
			hist.addObservation("Execution results", rec.Feedback)
			logger.Debug("code executed",
				zap.Int("round", round),
				zap.String("status", string(outcome.Status)),
				zap.Int("artifacts", len(outcome.Artifacts)))
		}

		result.Rounds = append(result.Rounds, rec)
	}

	logger.Warn("round budget exhausted")
	return result, ErrRoundsExhausted
}

// checkBudget maps context expiry to the session error taxonomy.
func (o *Orchestrator) checkBudget(ctx context.Context) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrBudgetExceeded
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return nil
}

// complete fetches one completion, through the cache when enabled.
func (o *Orchestrator) complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if o.store == nil || !o.cfg.Cache.Enabled {
		return o.client.Complete(ctx, prompt, opts)
	}

	key, err := cache.CompletionKey(o.client.Name(), opts.Model, opts.Specialist, prompt, opts.System, opts.Temperature)
	if err != nil {
		return o.client.Complete(ctx, prompt, opts)
	}
	raw, _, err := o.store.GetOrCompute(key, o.cfg.Cache.GetTTL(), func() ([]byte, error) {
		text, err := o.client.Complete(ctx, prompt, opts)
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// delegate routes a sub-instruction to a specialist model.
func (o *Orchestrator) delegate(ctx context.Context, a parse.DelegationAction, system string) (string, error) {
	return o.complete(ctx, a.Instruction, llm.Options{
		Specialist: a.Specialist,
		System:     system,
	})
}

// uncacheableOutcome smuggles a sandbox-infrastructure outcome out of the
// cache compute callback without letting it be stored.
type uncacheableOutcome struct {
	outcome *sandbox.Outcome
}

func (e *uncacheableOutcome) Error() string { return "uncacheable outcome" }

// execute runs code in the sandbox, through the cache when enabled.
// Sandbox-infrastructure failures are never cached; everything else,
// including crashes and timeouts of the code itself, is.
func (o *Orchestrator) execute(ctx context.Context, code string, contents map[string][]byte, digests map[string]string) (*sandbox.Outcome, error) {
	req := sandbox.Request{Code: code, Files: contents}

	if o.store == nil || !o.cfg.Cache.Enabled {
		return o.executor.Execute(ctx, req)
	}

	key, err := cache.ExecutionKey(code, o.cfg.Execution.Interpreter, digests)
	if err != nil {
		return o.executor.Execute(ctx, req)
	}

	raw, _, err := o.store.GetOrCompute(key, o.cfg.Cache.GetExecutionTTL(), func() ([]byte, error) {
		outcome, err := o.executor.Execute(ctx, req)
		if err != nil {
			return nil, err
		}
		if outcome.Status.Fatal() {
			return nil, &uncacheableOutcome{outcome: outcome}
		}
		return marshalOutcome(outcome)
	})
	if err != nil {
		var uncacheable *uncacheableOutcome
		if errors.As(err, &uncacheable) {
			return uncacheable.outcome, nil
		}
		return nil, err
	}
	outcome, err := unmarshalOutcome(raw)
	if err != nil {
		// A corrupt cached entry degrades to a fresh run.
		o.logger.Warn("corrupt cached execution, re-running", zap.Error(err))
		_ = o.store.Delete(key)
		return o.executor.Execute(ctx, req)
	}
	return outcome, nil
}

// formatExecutionFeedback renders an outcome the way the model sees it.
func formatExecutionFeedback(outcome *sandbox.Outcome) string {
	var status string
	switch outcome.Status {
	case sandbox.StatusOK:
		status = "exit code 0"
	case sandbox.StatusNonZeroExit:
		status = fmt.Sprintf("exit code %d", outcome.ExitCode)
	case sandbox.StatusTimeout:
		status = "execution timed out"
	case sandbox.StatusResourceLimit:
		status = "execution exceeded the memory limit"
	default:
		status = string(outcome.Status)
	}

	out := outcome.Combined()
	if out == "" {
		out = "(no output)"
	}
	feedback := fmt.Sprintf("%s\n%s", status, out)
	if len(outcome.Artifacts) > 0 {
		feedback += "\nsaved files:"
		for _, a := range outcome.Artifacts {
			feedback += fmt.Sprintf("\n- %s (%d bytes)", a.Name, len(a.Data))
		}
	}
	return feedback
}

// renderPrompt assembles the per-round user prompt.
func renderPrompt(task string, hist *history) string {
	transcript := hist.render()
	if transcript == "" {
		return task
	}
	return task + "\n\n" + transcript + "\n\nRespond with your next step."
}
