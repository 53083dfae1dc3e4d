package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogImport refreshes movies and members from the public feeds.
	TaskCatalogImport = "catalog:import"
	// CatalogImportCron runs the import daily at 03:00 UTC.
	CatalogImportCron = "0 3 * * *"
	// catalogImportUniqueFor blocks duplicate manual triggers.
	catalogImportUniqueFor = 15 * time.Minute
)

// CatalogImportPayload carries audit metadata for an import run.
type CatalogImportPayload struct {
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewCatalogImportTask constructs an Asynq task for a catalog import.
func NewCatalogImportTask(payload CatalogImportPayload) (*asynq.Task, error) {
	if payload.RequestedBy == "" {
		payload.RequestedBy = "scheduler"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogImport, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
