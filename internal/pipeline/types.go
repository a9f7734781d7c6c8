package pipeline

// #region imports
import (
	"context"
	"time"

	"github.com/danielpatrickdp/posture-check/internal/estimator"
	"github.com/danielpatrickdp/posture-check/internal/eval"
	"github.com/danielpatrickdp/posture-check/internal/geometry"
)

// #endregion

// #region config

// Config controls concurrency and estimator retries.
type Config struct {
	Workers        int           // frames evaluated in parallel by Run
	MaxRetries     int           // estimator retries after the first attempt
	RetryBackoff   time.Duration // wait before retry n is n*RetryBackoff
	PredictTimeout time.Duration // per-attempt deadline, 0 for none
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		Workers:        4,
		MaxRetries:     2,
		RetryBackoff:   200 * time.Millisecond,
		PredictTimeout: 30 * time.Second,
	}
}

// #endregion

// #region trigger

// Trigger records how an evaluation was produced.
type Trigger string

const (
	TriggerKeypoints Trigger = "keypoints" // pre-extracted keypoint file
	TriggerImage     Trigger = "image"     // estimator on an image
)

// #endregion

// #region frame

// Frame is one image's worth of detected people.
type Frame struct {
	Source  string
	Index   int
	Persons []geometry.Keypoints
}

// FrameResult holds one verdict per evaluated person in frame order.
type FrameResult struct {
	Source   string
	Index    int
	Verdicts []eval.Verdict
	Err      error
}

// Labels renders each verdict as a display string.
func (r FrameResult) Labels() []string {
	labels := make([]string, len(r.Verdicts))
	for i, v := range r.Verdicts {
		labels[i] = v.String()
	}
	return labels
}

// #endregion

// #region collaborators

// Estimator turns an encoded image into keypoints. *estimator.Client satisfies it.
type Estimator interface {
	Predict(ctx context.Context, frame []byte, format string) (estimator.Prediction, error)
}

// Observation is one person's verdict handed to a Recorder.
type Observation struct {
	Source      string
	FrameIndex  int
	PersonIndex int
	Trigger     Trigger
	Keypoints   geometry.Keypoints
	Verdict     eval.Verdict
}

// Recorder persists observations. Failures are logged, never fatal.
type Recorder interface {
	Record(obs Observation) error
}

// #endregion
