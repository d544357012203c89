package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueStockReconciliation = "jobs:stock_reconciliation"

	JobStockReconciliation = "stock_reconciliation"
)

const (
	popTimeout   = 5 * time.Second
	redisBackoff = 2 * time.Second
)

var jobsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "imanager_jobs_consumed_total",
	Help: "Jobs popped from the Redis queues, by type and routing result",
}, []string{"type", "result"})

// Job is the envelope stored in every queue list.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type StockReconciliationJob struct {
	ReconciliationID string `json:"reconciliation_id"`
}

// JobHandler consumes the payload of one job type. Handlers own their
// failures; the pool never re-queues.
type JobHandler interface {
	Process(ctx context.Context, payload json.RawMessage)
}

// Dispatcher implements service.ReconciliationQueue over a Redis list.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

func (d *Dispatcher) EnqueueStockReconciliation(ctx context.Context, reconciliationID uuid.UUID) error {
	return d.push(ctx, QueueStockReconciliation, JobStockReconciliation,
		StockReconciliationJob{ReconciliationID: reconciliationID.String()})
}

func (d *Dispatcher) push(ctx context.Context, queue, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool starts numWorkers consumers blocked on BRPOP. They exit
// when ctx is cancelled.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, handlers map[string]JobHandler) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	for i := 0; i < numWorkers; i++ {
		go consume(ctx, rdb, i, handlers)
	}
	log.Info().Int("workers", numWorkers).Msg("worker pool: started")
}

func consume(ctx context.Context, rdb *redis.Client, id int, handlers map[string]JobHandler) {
	for ctx.Err() == nil {
		res, err := rdb.BRPop(ctx, popTimeout, QueueStockReconciliation).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			log.Warn().Err(err).Int("worker", id).Msg("worker pool: pop failed")
			select {
			case <-ctx.Done():
			case <-time.After(redisBackoff):
			}
			continue
		}
		if len(res) == 2 {
			processJob(ctx, rdb, handlers, res[0], res[1])
		}
	}
	log.Info().Int("worker", id).Msg("worker pool: consumer stopped")
}

// processJob routes one raw queue entry. Entries that do not decode or have
// no handler are dead-lettered.
func processJob(ctx context.Context, rdb *redis.Client, handlers map[string]JobHandler, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		jobsConsumed.WithLabelValues("", "undecodable").Inc()
		SendToDLQ(ctx, rdb, queue, "", json.RawMessage(nil), "undecodable job: "+err.Error(), 0)
		return
	}
	h, ok := handlers[job.Type]
	if !ok {
		jobsConsumed.WithLabelValues(job.Type, "unrouted").Inc()
		SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, "no handler for job type", 0)
		return
	}
	jobsConsumed.WithLabelValues(job.Type, "handled").Inc()
	h.Process(ctx, job.Payload)
}
