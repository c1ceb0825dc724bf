package completion

import "context"

// Passthrough возвращает хайлайты как есть. Используется, когда генерация выключена.
type Passthrough struct{}

func (Passthrough) Complete(_ context.Context, highlights string) (string, error) {
	return highlights, nil
}
