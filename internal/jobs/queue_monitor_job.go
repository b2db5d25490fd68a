package jobs

import (
	"context"
	"time"

	"github.com/awesomepizza/gin-order-queue/internal/models"
	"github.com/awesomepizza/gin-order-queue/internal/store"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// backlogWarnThreshold is the pending-queue depth above which the monitor
// starts warning. A single pizzaiolo working one order at a time cannot keep
// up with a backlog this deep.
const backlogWarnThreshold = 10

// QueueMonitorJob periodically reports the state of the order queue: how many
// orders are waiting, which one is on the counter and for how long. It only
// reads, it never transitions orders.
type QueueMonitorJob struct {
	store    store.OrderStore
	cron     *cron.Cron
	schedule string
	log      *logrus.Logger
}

// NewQueueMonitorJob creates the monitor. schedule accepts any robfig/cron
// spec, e.g. "@every 1m".
func NewQueueMonitorJob(orderStore store.OrderStore, schedule string, logger *logrus.Logger) *QueueMonitorJob {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &QueueMonitorJob{
		store:    orderStore,
		cron:     cron.New(),
		schedule: schedule,
		log:      logger,
	}
}

// Start begins the periodic queue report.
func (j *QueueMonitorJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, j.report)
	if err != nil {
		return err
	}

	j.cron.Start()
	j.log.WithField("schedule", j.schedule).Info("Queue monitor started")
	return nil
}

// Stop stops the monitor.
func (j *QueueMonitorJob) Stop() {
	j.cron.Stop()
	j.log.Info("Queue monitor stopped")
}

func (j *QueueMonitorJob) report() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pending, err := j.store.CountByStatus(ctx, models.StatusPending)
	if err != nil {
		j.log.WithError(err).Error("Queue monitor failed to count pending orders")
		return
	}

	fields := logrus.Fields{"pending": pending}

	active, err := j.store.FindByStatus(ctx, models.StatusInProgress, 1)
	if err != nil {
		j.log.WithError(err).Error("Queue monitor failed to inspect active order")
		return
	}
	if len(active) > 0 {
		fields["active_code"] = active[0].Code
		fields["active_age"] = time.Since(active[0].CreatedAt).Round(time.Second).String()
	}

	if pending > backlogWarnThreshold {
		j.log.WithFields(fields).Warn("Order queue backlog is growing")
		return
	}
	j.log.WithFields(fields).Info("Order queue status")
}
