package pipeline

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/danielpatrickdp/posture-check/internal/eval"
)

// #endregion

// ErrNoEstimator is returned by ProcessImage when the pipeline has no estimator.
var ErrNoEstimator = errors.New("pipeline: no pose estimator configured")

// #region pipeline

// Pipeline wires the estimator, evaluator and recorder for frame processing.
type Pipeline struct {
	evaluator *eval.Evaluator
	estimator Estimator
	recorder  Recorder
	config    Config
	logger    *slog.Logger
}

// New creates a pipeline. estimator and recorder may be nil; logger defaults
// to slog.Default().
func New(evaluator *eval.Evaluator, est Estimator, rec Recorder, config Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Pipeline{
		evaluator: evaluator,
		estimator: est,
		recorder:  rec,
		config:    config,
		logger:    logger,
	}
}

// #endregion

// #region evaluate-frame

// EvaluateFrame evaluates every non-empty person in a frame of pre-extracted keypoints.
func (p *Pipeline) EvaluateFrame(frame Frame) FrameResult {
	return p.evaluate(frame, TriggerKeypoints)
}

func (p *Pipeline) evaluate(frame Frame, trigger Trigger) FrameResult {
	res := FrameResult{Source: frame.Source, Index: frame.Index}
	person := 0
	for _, kp := range frame.Persons {
		if len(kp) == 0 {
			continue
		}
		v := p.evaluator.Evaluate(kp)
		res.Verdicts = append(res.Verdicts, v)
		p.record(Observation{
			Source:      frame.Source,
			FrameIndex:  frame.Index,
			PersonIndex: person,
			Trigger:     trigger,
			Keypoints:   kp,
			Verdict:     v,
		})
		person++
	}
	p.logger.Debug("frame evaluated",
		"source", frame.Source, "frame", frame.Index, "persons", len(res.Verdicts))
	return res
}

func (p *Pipeline) record(obs Observation) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Record(obs); err != nil {
		p.logger.Warn("record evaluation failed",
			"source", obs.Source, "frame", obs.FrameIndex, "person", obs.PersonIndex, "err", err)
	}
}

// #endregion

// #region process-image

// ProcessImage runs the estimator on one encoded image, retrying transient
// failures, then evaluates each detected person.
func (p *Pipeline) ProcessImage(ctx context.Context, source string, data []byte, format string) (FrameResult, error) {
	if p.estimator == nil {
		return FrameResult{Source: source}, ErrNoEstimator
	}
	pred, err := p.predictWithRetry(ctx, data, format)
	if err != nil {
		return FrameResult{Source: source, Err: err}, fmt.Errorf("estimate %s: %w", source, err)
	}
	return p.evaluate(Frame{Source: source, Persons: pred.Persons}, TriggerImage), nil
}

// #endregion

// #region run

// Run evaluates frames on a pool of workers sharing the read-only evaluator.
// Results come back in input order. Frames not started before ctx is done
// carry ctx.Err().
func (p *Pipeline) Run(ctx context.Context, frames []Frame) []FrameResult {
	results := make([]FrameResult, len(frames))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.EvaluateFrame(frames[i])
			}
		}()
	}

	next := 0
dispatch:
	for ; next < len(frames); next++ {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- next:
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(frames); i++ {
		results[i] = FrameResult{Source: frames[i].Source, Index: frames[i].Index, Err: ctx.Err()}
	}
	return results
}

// #endregion
