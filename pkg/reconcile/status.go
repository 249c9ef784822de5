package reconcile

// Status vocabulary reported by the personalization provider.
const (
	StatusActive           = "ACTIVE"
	StatusCreatePending    = "CREATE PENDING"
	StatusCreateInProgress = "CREATE IN_PROGRESS"
	StatusCreateFailed     = "CREATE FAILED"
	StatusDeletePending    = "DELETE PENDING"
	StatusDeleteInProgress = "DELETE IN_PROGRESS"
)

// activeOrCreating holds the statuses under which an existing resource is
// usable now or will become usable without intervention.
var activeOrCreating = map[string]bool{
	StatusActive:           true,
	StatusCreatePending:    true,
	StatusCreateInProgress: true,
}

var inProgress = map[string]bool{
	StatusCreatePending:    true,
	StatusCreateInProgress: true,
	StatusDeletePending:    true,
	StatusDeleteInProgress: true,
}

func isActiveOrCreating(status string) bool { return activeOrCreating[status] }

func isInProgress(status string) bool { return inProgress[status] }
