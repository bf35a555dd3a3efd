package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/tordrt/schemamodeler/internal/logger"
)

type retryModel struct {
	Model
	maxRetries uint64
	log        logrus.FieldLogger
	newBackOff func() backoff.BackOff
}

// WithRetry retries temporary provider errors up to maxRetries times with
// exponential backoff. maxRetries of zero returns model unchanged.
func WithRetry(model Model, maxRetries int, log logrus.FieldLogger) Model {
	if maxRetries <= 0 {
		return model
	}
	return &retryModel{
		Model:      model,
		maxRetries: uint64(maxRetries),
		log:        logger.OrDiscard(log),
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(time.Second),
				backoff.WithMaxInterval(30*time.Second),
				backoff.WithMaxElapsedTime(5*time.Minute),
			)
		},
	}
}

// Complete implements Model
func (r *retryModel) Complete(ctx context.Context, prompt string) (string, error) {
	op := func() (string, error) {
		text, err := r.Model.Complete(ctx, prompt)
		if err == nil {
			return text, nil
		}
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Temporary() {
			return "", err
		}
		return "", backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		r.log.WithFields(logrus.Fields{
			"model": r.Name(),
			"wait":  wait,
		}).WithError(err).Warn("model call failed, retrying")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	return backoff.RetryNotifyWithData(op, b, notify)
}
