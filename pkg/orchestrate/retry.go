package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/curator-ml/curator/pkg/reconcile"
	"github.com/curator-ml/curator/pkg/resource"
	"github.com/curator-ml/curator/pkg/telemetry"
)

// FatalError carries a non-retryable outcome out of the retry loop.
type FatalError struct {
	Kind    resource.Kind
	Outcome reconcile.Outcome
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Outcome)
}

// BackoffFactory builds a fresh backoff policy per resource.
type BackoffFactory func() backoff.BackOff

// DefaultBackoff is a capped exponential policy without an overall
// deadline; convergence is bounded by the caller's context instead.
func DefaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 2 * time.Minute
	b.MaxElapsedTime = 0
	return b
}

// retrier drives one item to a terminal outcome, honoring the outcome
// contract: pending retries with backoff, needs-update runs the update
// then retries, a pending solution version captures its ARN then
// retries, failed and invalid stop fatally.
type retrier struct {
	engine  *reconcile.Engine
	factory BackoffFactory
	log     *telemetry.Logger
}

var errRetry = errors.New("retry")

func (r retrier) converge(ctx context.Context, item *Item) error {
	policy := backoff.WithContext(r.factory(), ctx)
	log := r.log.WithKind(string(item.Kind)).WithField("name", item.Name)

	op := func() error {
		out := r.engine.Reconcile(ctx, item.Kind, item.Desired)
		item.Outcome = out
		switch out.Tag {
		case reconcile.TagTerminal:
			return nil
		case reconcile.TagPending:
			log.Debug("pending, backing off")
			return errRetry
		case reconcile.TagSolutionVersionPending:
			// Pin the new version so later passes match it by name.
			item.Desired["solutionVersionArn"] = out.SolutionVersionARN
			log.WithField("arn", out.SolutionVersionARN).Info("solution version training")
			return errRetry
		case reconcile.TagNeedsUpdate:
			up := r.engine.Update(ctx, item.Kind, item.Desired)
			if up.Tag == reconcile.TagFailed || up.Tag == reconcile.TagInvalid {
				item.Outcome = up
				return backoff.Permanent(&FatalError{Kind: item.Kind, Outcome: up})
			}
			return errRetry
		default:
			return backoff.Permanent(&FatalError{Kind: item.Kind, Outcome: out})
		}
	}
	return backoff.Retry(op, policy)
}
