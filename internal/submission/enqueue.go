package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-bakery/internal/resilience"
)

// TaskClient is the subset of *asynq.Client used to publish submissions.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer publishes checkout submissions as asynq tasks.
type Enqueuer struct {
	Client    TaskClient
	Queue     string
	MaxRetry  int
	Retention time.Duration
	// Guard retries the enqueue behind a breaker. A repeated enqueue of the
	// same submission collides on the task id and is treated as done.
	Guard *resilience.Policy
}

// NewTask builds the asynq task for a payload. The submission id doubles as the
// task id so a repeated enqueue of the same submission is rejected by asynq.
func NewTask(p Payload) (*asynq.Task, error) {
	body, err := p.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	return asynq.NewTask(TaskTypeSubmit, body), nil
}

// Submit enqueues the payload and returns the broker's task id.
func (e Enqueuer) Submit(ctx context.Context, p Payload) (string, error) {
	if e.Client == nil {
		return "", errors.New("submission: task client not configured")
	}
	task, err := NewTask(p)
	if err != nil {
		return "", err
	}
	opts := []asynq.Option{}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if e.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(e.MaxRetry))
	}
	if e.Retention > 0 {
		opts = append(opts, asynq.Retention(e.Retention))
	}
	if p.SubmissionID != "" {
		opts = append(opts, asynq.TaskID(p.SubmissionID))
	}
	var info *asynq.TaskInfo
	enqueue := func(ctx context.Context) error {
		var err error
		info, err = e.Client.EnqueueContext(ctx, task, opts...)
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			info = &asynq.TaskInfo{ID: p.SubmissionID}
			return nil
		}
		return err
	}
	if e.Guard != nil {
		err = e.Guard.Do(ctx, enqueue)
	} else {
		err = enqueue(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("enqueue submission: %w", err)
	}
	return info.ID, nil
}
