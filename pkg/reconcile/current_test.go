package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/curator-ml/curator/pkg/provider"
	"github.com/curator-ml/curator/pkg/telemetry"
)

type fixedFresh time.Time

func (f fixedFresh) LastModified(context.Context) (time.Time, error) {
	return time.Time(f), nil
}

func TestIsCurrent(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tenDaysAgo := now.Add(-10 * 24 * time.Hour)
	oneDayAgo := now.Add(-24 * time.Hour)

	cases := []struct {
		name      string
		candidate provider.Fields
		desired   provider.Fields
		fresh     Freshness
		nameKey   string
		want      bool
	}{
		{
			name:      "fresh active candidate inside the window",
			candidate: provider.Fields{"status": StatusActive, "lastUpdatedDateTime": oneDayAgo},
			desired:   provider.Fields{"maxAge": "5 days"},
			want:      true,
		},
		{
			name:      "stale candidate with newer data is replaced",
			candidate: provider.Fields{"status": StatusActive, "lastUpdatedDateTime": tenDaysAgo},
			desired:   provider.Fields{"maxAge": "5 days"},
			fresh:     fixedFresh(oneDayAgo),
			want:      false,
		},
		{
			name:      "stale candidate with no newer data is kept",
			candidate: provider.Fields{"status": StatusActive, "lastUpdatedDateTime": tenDaysAgo},
			desired:   provider.Fields{"maxAge": "5 days"},
			fresh:     fixedFresh(now.Add(-20 * 24 * time.Hour)),
			want:      true,
		},
		{
			name:      "stale candidate without a detector is replaced",
			candidate: provider.Fields{"status": StatusActive, "lastUpdatedDateTime": tenDaysAgo},
			desired:   provider.Fields{"maxAge": "5 days"},
			want:      false,
		},
		{
			name:      "stale candidate under assume-fresh is kept",
			candidate: provider.Fields{"status": StatusActive, "lastUpdatedDateTime": tenDaysAgo},
			desired:   provider.Fields{"maxAge": "5 days"},
			fresh:     AssumeFresh{},
			want:      true,
		},
		{
			name:      "creating candidate ignores the window",
			candidate: provider.Fields{"status": StatusCreateInProgress, "lastUpdatedDateTime": tenDaysAgo},
			desired:   provider.Fields{"maxAge": "5 days"},
			want:      true,
		},
		{
			name:      "deleting candidate is rejected",
			candidate: provider.Fields{"status": StatusDeletePending, "lastUpdatedDateTime": oneDayAgo},
			desired:   provider.Fields{},
			want:      false,
		},
		{
			name:      "failed candidate is rejected",
			candidate: provider.Fields{"status": StatusCreateFailed},
			desired:   provider.Fields{},
			want:      false,
		},
		{
			name:      "no window accepts any active candidate",
			candidate: provider.Fields{"status": StatusActive, "lastUpdatedDateTime": tenDaysAgo},
			desired:   provider.Fields{},
			want:      true,
		},
		{
			name:      "matching name short-circuits everything",
			candidate: provider.Fields{"jobName": "import-a", "status": StatusCreateFailed},
			desired:   provider.Fields{"jobName": "import-a"},
			nameKey:   "jobName",
			want:      true,
		},
		{
			name:      "different name falls through to the window rules",
			candidate: provider.Fields{"jobName": "import-a", "status": StatusActive, "lastUpdatedDateTime": tenDaysAgo},
			desired:   provider.Fields{"jobName": "import-b", "maxAge": "5 days"},
			nameKey:   "jobName",
			want:      false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cur := currency{
				nameKey: tc.nameKey,
				fresh:   tc.fresh,
				now:     func() time.Time { return now },
				log:     telemetry.Nop(),
			}
			if got := cur.isCurrent(context.Background(), tc.candidate, tc.desired); got != tc.want {
				t.Errorf("isCurrent = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseAge(t *testing.T) {
	cases := []struct {
		expr    string
		want    time.Duration
		wantErr bool
	}{
		{expr: "365 days", want: 365 * 24 * time.Hour},
		{expr: "1 day", want: 24 * time.Hour},
		{expr: "2 weeks", want: 14 * 24 * time.Hour},
		{expr: "1 day 6 hours", want: 30 * time.Hour},
		{expr: "90 minutes", want: 90 * time.Minute},
		{expr: "1 Hour", want: time.Hour},
		{expr: "", wantErr: true},
		{expr: "soon", wantErr: true},
		{expr: "3 fortnights", wantErr: true},
		{expr: "0 days", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := ParseAge(tc.expr)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseAge(%q) = %v, want error", tc.expr, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAge(%q): %v", tc.expr, err)
			}
			if got != tc.want {
				t.Errorf("ParseAge(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}
