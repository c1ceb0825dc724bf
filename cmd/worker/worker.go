package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"repo-digest/internal/domain"
	"repo-digest/internal/usecase/digest"
)

// dedupeTTL покрывает повторную доставку задачи брокером после сбоя подтверждения.
const dedupeTTL = 24 * time.Hour

type jobRunner interface {
	RunJob(ctx context.Context, job domain.DigestJob) (digest.Result, error)
}

type jobWorker struct {
	log     zerolog.Logger
	queue   domain.DigestQueue
	dedupe  domain.Cache
	service jobRunner
}

func (w *jobWorker) Run(ctx context.Context) {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("worker: ошибка чтения очереди")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		w.handle(ctx, job, ack)
	}
}

// handle обрабатывает задачу и подтверждает её. Неуспешная задача не
// возвращается в очередь: следующий слот планировщика построит новый дайджест.
func (w *jobWorker) handle(ctx context.Context, job domain.DigestJob, ack domain.DigestAckFunc) {
	jobLog := w.log.With().
		Str("job_id", job.ID).
		Str("monitor_id", job.MonitorID).
		Str("cause", string(job.Cause)).
		Logger()

	if job.ID == "" {
		jobLog.Error().Msg("worker: получена задача без идентификатора, подтверждаем и пропускаем")
		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("worker: не удалось подтвердить задачу")
		}
		return
	}

	run := func() error {
		res, err := w.service.RunJob(ctx, job)
		if errors.Is(err, domain.ErrMonitorNotFound) {
			jobLog.Info().Msg("worker: монитор удалён, задача пропущена")
			return nil
		}
		if err != nil {
			return err
		}
		jobLog.Info().Str("status", string(res.DeliveryStatus)).Bool("recorded", res.Recorded).Msg("worker: задача выполнена")
		return nil
	}

	var err error
	if w.dedupe != nil {
		err = w.dedupe.Once(ctx, "digest_job:"+job.ID, dedupeTTL, run)
	} else {
		err = run()
	}
	if err != nil {
		jobLog.Error().Err(err).Msg("worker: задача завершилась ошибкой")
	}
	if ackErr := ack(err == nil); ackErr != nil {
		jobLog.Error().Err(ackErr).Msg("worker: не удалось подтвердить задачу")
	}
}
