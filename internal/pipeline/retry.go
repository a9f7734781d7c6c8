package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/posture-check/internal/estimator"
)

// #region predict-with-retry

// predictWithRetry calls the estimator up to MaxRetries+1 times. Each retry
// waits attempt*RetryBackoff. A malformed response is not retried, and
// cancellation of ctx stops retrying at once.
func (p *Pipeline) predictWithRetry(ctx context.Context, data []byte, format string) (estimator.Prediction, error) {
	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Info("retrying pose estimation", "attempt", attempt+1, "err", lastErr)
			select {
			case <-ctx.Done():
				return estimator.Prediction{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * p.config.RetryBackoff):
			}
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.config.PredictTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.config.PredictTimeout)
		}
		pred, err := p.estimator.Predict(attemptCtx, data, format)
		cancel()
		if err == nil {
			return pred, nil
		}
		lastErr = err
		if errors.Is(err, estimator.ErrMalformedResponse) {
			return estimator.Prediction{}, err
		}
		if ctx.Err() != nil {
			return estimator.Prediction{}, ctx.Err()
		}
	}
	return estimator.Prediction{}, lastErr
}

// #endregion
