package resource

import "fmt"

// Partition describes the remote account context ARNs are built for.
type Partition struct {
	Partition string
	Region    string
	Account   string
}

// DefaultPartition is used when the caller has no account context, e.g.
// configuration validation placeholders.
var DefaultPartition = Partition{Partition: "aws", Region: "us-east-1", Account: "account"}

// ARN constructs the canonical resource ARN for a named resource of the
// given kind.
func (p Partition) ARN(kind Kind, name string) string {
	return fmt.Sprintf("arn:%s:personalize:%s:%s:%s/%s",
		p.Partition, p.Region, p.Account, kind.Name().Dash(), name)
}

// SolutionVersionARN constructs the ARN of a solution version, which
// lives under its solution rather than under a dash-cased kind segment.
func (p Partition) SolutionVersionARN(solutionName, versionID string) string {
	if versionID == "" {
		versionID = "unknown"
	}
	return fmt.Sprintf("arn:%s:personalize:%s:%s:solution/%s/%s",
		p.Partition, p.Region, p.Account, solutionName, versionID)
}

// SolutionOf strips the version suffix from a solution version ARN,
// returning the owning solution's ARN. ARNs without a version segment
// are returned unchanged.
func SolutionOf(solutionVersionARN string) string {
	for i := len(solutionVersionARN) - 1; i >= 0; i-- {
		if solutionVersionARN[i] == '/' {
			return solutionVersionARN[:i]
		}
	}
	return solutionVersionARN
}
