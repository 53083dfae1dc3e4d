package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cinemaclub/cinemaclub/jobs"
)

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    taskEnqueuer
	inspector queueInspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis options.
func NewJobsCLI(redisOpts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(redisOpts), inspector: asynq.NewInspector(redisOpts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name with default payload.
func (c *JobsCLI) Trigger(ctx context.Context, name, requestedBy string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskCatalogImport:
		task, err = jobs.NewCatalogImportTask(jobs.CatalogImportPayload{RequestedBy: requestedBy, RequestedAt: time.Now().UTC()})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// JobsOptions carries IO for the jobs command.
type JobsOptions struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Command runs `jobs trigger|stats|scheduled` and returns the exit code.
func (c *JobsCLI) Command(ctx context.Context, args []string, opts JobsOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if len(args) == 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "usage: cinemaclub jobs <trigger|stats|scheduled> [flags]")
		return 2
	}

	fs := flag.NewFlagSet("jobs "+args[0], flag.ContinueOnError)
	fs.SetOutput(opts.Stderr)
	jsonOut := fs.Bool("json", false, "print JSON output")
	name := fs.String("name", jobs.TaskCatalogImport, "job to trigger")
	by := fs.String("by", "cli", "requester recorded on the task")
	size := fs.Int("size", 10, "number of scheduled tasks to list")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	switch args[0] {
	case "trigger":
		info, err := c.Trigger(ctx, *name, *by)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		return emit(opts, *jsonOut, map[string]string{"task_id": info.ID, "queue": info.Queue}, func(w io.Writer) {
			_, _ = fmt.Fprintf(w, "enqueued %s as %s on %s\n", *name, info.ID, info.Queue)
		})
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		return emit(opts, *jsonOut, stats, func(w io.Writer) {
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY")
			_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
			_ = tw.Flush()
		})
	case "scheduled":
		tasks, err := c.ListScheduled(ctx, *size)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs scheduled: %v\n", err)
			return 1
		}
		type row struct {
			ID   string    `json:"id"`
			Type string    `json:"type"`
			At   time.Time `json:"next_process_at"`
		}
		rows := make([]row, 0, len(tasks))
		for _, t := range tasks {
			rows = append(rows, row{ID: t.ID, Type: t.Type, At: t.NextProcessAt})
		}
		return emit(opts, *jsonOut, rows, func(w io.Writer) {
			for _, r := range rows {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Type, r.At.Format(time.RFC3339))
			}
		})
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "jobs: unknown subcommand %q\n", args[0])
		return 2
	}
}

func emit(opts JobsOptions, asJSON bool, v any, human func(io.Writer)) int {
	if !asJSON {
		human(opts.Stdout)
		return 0
	}
	if err := json.NewEncoder(opts.Stdout).Encode(v); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs: encode json: %v\n", err)
		return 1
	}
	return 0
}
