package delivery

import (
	"context"
	"errors"

	"repo-digest/internal/domain"
)

// ErrEmailNotConfigured — почтовая доставка не подключена.
var ErrEmailNotConfigured = errors.New("email delivery is not configured")

// Email — канал почтовой доставки. Пока транспорт не подключён, каждая
// отправка явно завершается ошибкой.
type Email struct{}

func (Email) Method() domain.DeliveryMethod { return domain.DeliveryEmail }

func (Email) Send(context.Context, string, domain.Message) error {
	return ErrEmailNotConfigured
}
