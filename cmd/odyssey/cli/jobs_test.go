package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-invoice/jobs"
)

type fakeQueue struct {
	enqueued []*asynq.Task
	info     *asynq.QueueInfo
	infoErr  error
}

func (f *fakeQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.enqueued = append(f.enqueued, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (f *fakeQueue) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeQueue) ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{ID: "s1", Queue: queue}}, nil
}

func TestTrigger(t *testing.T) {
	q := &fakeQueue{}
	c := &JobsCLI{client: q, inspector: q}

	info, err := c.Trigger(context.Background(), jobs.TaskCatalogWarmup)
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskCatalogWarmup, info.Type)

	var payload jobs.CatalogWarmupPayload
	require.NoError(t, json.Unmarshal(q.enqueued[0].Payload(), &payload))
	assert.Equal(t, "manual", payload.Reason)

	_, err = c.Trigger(context.Background(), jobs.TaskReceiptRender)
	assert.Error(t, err, "receipts need an invoice payload")

	var nilCLI *JobsCLI
	_, err = nilCLI.Trigger(context.Background(), jobs.TaskCatalogWarmup)
	assert.Error(t, err)
}

func TestInspectQueue(t *testing.T) {
	q := &fakeQueue{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 4, Retry: 1}}
	c := &JobsCLI{client: q, inspector: q}

	stats, err := c.InspectQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 4, Retry: 1}, stats)

	var buf bytes.Buffer
	require.NoError(t, WriteStats(&buf, stats))
	assert.Contains(t, buf.String(), "PENDING")
	assert.Contains(t, buf.String(), "default")

	q.info, q.infoErr = nil, asynq.ErrQueueNotFound
	stats, err = c.InspectQueue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)

	q.infoErr = errors.New("redis down")
	_, err = c.InspectQueue(context.Background())
	assert.Error(t, err)

	tasks, err := c.ListScheduled(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestNewJobsCLIRequiresAddr(t *testing.T) {
	_, err := NewJobsCLI("")
	assert.Error(t, err)
}
