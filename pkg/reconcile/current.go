package reconcile

import (
	"context"
	"time"

	"github.com/curator-ml/curator/pkg/provider"
	"github.com/curator-ml/curator/pkg/telemetry"
)

// Freshness reports the last-modified time of the source data behind a
// resource. When no detector is wired the engine assumes newer data exists,
// so stale resources are always rebuilt.
type Freshness interface {
	LastModified(ctx context.Context) (time.Time, error)
}

// AssumeFresh is a Freshness that reports no data change ever. Stale
// resources are then kept rather than rebuilt.
type AssumeFresh struct{}

func (AssumeFresh) LastModified(context.Context) (time.Time, error) {
	return time.Time{}, nil
}

// currency decides whether an existing candidate still satisfies the
// desired fields, applying the staleness window when one is set.
type currency struct {
	nameKey string
	fresh   Freshness
	now     func() time.Time
	log     *telemetry.Logger
}

// isCurrent applies the candidate acceptance rules:
//
//   - A matching name under nameKey accepts the candidate outright.
//   - A candidate that is neither active nor still creating is rejected.
//   - With a staleness window on an ACTIVE candidate, a stale candidate is
//     rejected only when newer source data is available; a stale candidate
//     with no newer data is kept, since rebuilding would reproduce it.
//   - A candidate still creating is accepted regardless of age.
func (c currency) isCurrent(ctx context.Context, candidate, desired provider.Fields) bool {
	if c.nameKey != "" {
		oldName, _ := candidate[c.nameKey].(string)
		newName, _ := desired[c.nameKey].(string)
		if oldName != "" && oldName == newName {
			return true
		}
	}

	status, _ := candidate["status"].(string)
	if !isActiveOrCreating(status) {
		return false
	}

	window, err := maxAgeOf(desired)
	if err != nil {
		c.log.WithError(err).Warn("ignoring unparseable staleness window")
		window = 0
	}
	if window == 0 || status != StatusActive {
		return true
	}

	updated, ok := timestampOf(candidate["lastUpdatedDateTime"])
	if !ok {
		updated, ok = timestampOf(candidate["creationDateTime"])
	}
	if !ok {
		return false
	}

	if c.now().Sub(updated) <= window {
		return true
	}

	// Stale. Rebuild only when newer source data has arrived since the
	// candidate was produced; otherwise the rebuild would be identical.
	if c.fresh == nil {
		return false
	}
	dataTime, err := c.fresh.LastModified(ctx)
	if err != nil {
		c.log.WithError(err).Warn("freshness check failed, assuming newer data")
		return false
	}
	if dataTime.After(updated) {
		return false
	}
	return true
}
