// Package delivery отправляет готовые дайджесты в каналы доставки.
package delivery

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"repo-digest/internal/domain"
)

// Channel — адаптер одного способа доставки.
type Channel interface {
	Method() domain.DeliveryMethod
	Send(ctx context.Context, destination string, msg domain.Message) error
}

// Dispatcher выбирает канал по способу доставки.
type Dispatcher struct {
	channels map[domain.DeliveryMethod]Channel
	log      zerolog.Logger
}

var _ domain.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher регистрирует каналы.
func NewDispatcher(logger zerolog.Logger, channels ...Channel) *Dispatcher {
	d := &Dispatcher{channels: make(map[domain.DeliveryMethod]Channel, len(channels)), log: logger}
	for _, ch := range channels {
		d.channels[ch.Method()] = ch
	}
	return d
}

// Dispatch проверяет запрос до любых сетевых вызовов. Ошибки транспорта не
// возвращаются как error, а отражаются в DeliveryResult.
func (d *Dispatcher) Dispatch(ctx context.Context, del domain.Delivery, msg domain.Message) (domain.DeliveryResult, error) {
	ch, ok := d.channels[del.Method]
	if !ok {
		return domain.DeliveryResult{}, domain.ErrUnsupportedDeliveryMethod
	}
	dest := strings.TrimSpace(del.Destination)
	if dest == "" {
		return domain.DeliveryResult{}, domain.ErrMissingDestination
	}
	if err := ch.Send(ctx, dest, msg); err != nil {
		d.log.Error().Err(err).Str("method", string(del.Method)).Str("repo", msg.RepoName).Msg("delivery: отправка не удалась")
		return domain.DeliveryResult{Success: false, Error: err.Error()}, nil
	}
	d.log.Info().Str("method", string(del.Method)).Str("repo", msg.RepoName).Msg("delivery: дайджест отправлен")
	return domain.DeliveryResult{Success: true}, nil
}
