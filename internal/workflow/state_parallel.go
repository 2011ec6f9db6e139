package workflow

import (
	"context"
	"fmt"
	"sync"
)

// ParallelState fans out its effective input to every declared Branch
// concurrently and fans the branch outputs back in as a single ordered
// array, indexed by declared branch position rather than completion
// order (spec.md 4.9). Each branch is itself a complete nested
// StateMachine; this mirrors the shape of the teacher's
// goroutine-per-branch + buffered-channel + sync.WaitGroup pattern in
// internal/workflows/runtime/parallel_executor.go, generalized from a
// name-keyed merge to an index-ordered array and from "first error wins
// loosely" to eager cancellation of the remaining branches.
type ParallelState struct {
	baseState

	Branches []*StateMachine

	InputPath      string
	ResultSelector map[string]any
	ResultPath     string
	OutputPath     string

	Retry []RetryRule
	Catch []CatchRule

	engine *Engine
	intr   *intrinsicEvaluator
}

func (s *ParallelState) Kind() string { return "Parallel" }

func (s *ParallelState) pipelineSpec() pipelineSpec {
	return pipelineSpec{
		InputPath:      s.InputPath,
		ResultSelector: s.ResultSelector,
		ResultPath:     s.ResultPath,
		OutputPath:     s.OutputPath,
	}
}

func (s *ParallelState) Execute(ctx context.Context, ex *Execution, input Value) (Value, error) {
	output, err := runPipeline(input, s.pipelineSpec(), s.intr, func(effectiveInput Value) (Value, error) {
		return runWithRetry(ctx, s.Retry, func(retryCtx context.Context) (Value, error) {
			return s.runBranches(retryCtx, ex, effectiveInput)
		})
	})
	if err == nil {
		return output, nil
	}

	wfErr, ok := err.(WorkflowError)
	if !ok {
		return nil, err
	}
	rule, matched := matchCatch(s.Catch, wfErr)
	if !matched {
		return nil, err
	}

	resultPath := rule.ResultPath
	if resultPath == "" {
		resultPath = s.ResultPath
	}
	merged := setAt(input, resultPath, catchErrorObject(wfErr))
	ex.Context[nextOverrideKey] = rule.Next
	return getAt(merged, s.OutputPath), nil
}

type branchOutcome struct {
	index  int
	output Value
	err    error
}

func (s *ParallelState) runBranches(ctx context.Context, ex *Execution, effectiveInput Value) (Value, error) {
	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan branchOutcome, len(s.Branches))
	var wg sync.WaitGroup

	for i, branch := range s.Branches {
		wg.Add(1)
		go func(i int, branch *StateMachine) {
			defer wg.Done()
			runName := fmt.Sprintf("%s/%s/branch-%d", ex.Name, s.StateName, i)
			output, _, err := s.engine.runNestedStateMachine(branchCtx, branch, runName, cloneValue(effectiveInput), ex.logger, ex.Context)
			results <- branchOutcome{index: i, output: output, err: err}
		}(i, branch)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]Value, len(s.Branches))
	var firstErr error
	for outcome := range results {
		if outcome.err != nil {
			if firstErr == nil {
				firstErr = outcome.err
				// A single branch failure makes the whole Parallel
				// state unsalvageable under ASL semantics (every
				// branch must succeed); cancel the rest immediately
				// rather than waiting for them to finish on their own.
				cancel()
			}
			continue
		}
		ordered[outcome.index] = outcome.output
	}

	if firstErr != nil {
		return nil, newError(ErrBranchFailed, "parallel state %q: %v", s.StateName, firstErr)
	}
	return ordered, nil
}
