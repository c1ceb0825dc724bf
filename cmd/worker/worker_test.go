package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"repo-digest/internal/domain"
	"repo-digest/internal/usecase/digest"
)

type stubRunner struct {
	err   error
	calls int
}

func (s *stubRunner) RunJob(context.Context, domain.DigestJob) (digest.Result, error) {
	s.calls++
	return digest.Result{DeliveryStatus: domain.DigestSuccess}, s.err
}

type memoryOnce struct {
	seen map[string]bool
}

func (m *memoryOnce) Once(_ context.Context, key string, _ time.Duration, fn func() error) error {
	if m.seen[key] {
		return nil
	}
	m.seen[key] = true
	if err := fn(); err != nil {
		delete(m.seen, key)
		return err
	}
	return nil
}

func recordAck(acks *[]bool) domain.DigestAckFunc {
	return func(success bool) error {
		*acks = append(*acks, success)
		return nil
	}
}

func TestHandleDeduplicatesRedelivery(t *testing.T) {
	runner := &stubRunner{}
	w := &jobWorker{log: zerolog.Nop(), dedupe: &memoryOnce{seen: map[string]bool{}}, service: runner}
	var acks []bool
	job := domain.DigestJob{ID: "job-1", MonitorID: "m1"}

	w.handle(context.Background(), job, recordAck(&acks))
	w.handle(context.Background(), job, recordAck(&acks))

	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, []bool{true, true}, acks)
}

func TestHandleFailureNacksJob(t *testing.T) {
	runner := &stubRunner{err: errors.New("github down")}
	w := &jobWorker{log: zerolog.Nop(), dedupe: &memoryOnce{seen: map[string]bool{}}, service: runner}
	var acks []bool

	w.handle(context.Background(), domain.DigestJob{ID: "job-1"}, recordAck(&acks))
	w.handle(context.Background(), domain.DigestJob{ID: "job-1"}, recordAck(&acks))

	assert.Equal(t, 2, runner.calls)
	assert.Equal(t, []bool{false, false}, acks)
}

func TestHandleDeletedMonitorIsAcked(t *testing.T) {
	w := &jobWorker{log: zerolog.Nop(), service: &stubRunner{err: domain.ErrMonitorNotFound}}
	var acks []bool

	w.handle(context.Background(), domain.DigestJob{ID: "job-1"}, recordAck(&acks))
	assert.Equal(t, []bool{true}, acks)
}

func TestHandleSkipsJobWithoutID(t *testing.T) {
	runner := &stubRunner{}
	w := &jobWorker{log: zerolog.Nop(), service: runner}
	var acks []bool

	w.handle(context.Background(), domain.DigestJob{}, recordAck(&acks))
	assert.Zero(t, runner.calls)
	assert.Equal(t, []bool{true}, acks)
}
