package logs

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// WithRequestID кладёт id запроса в контекст; FromContext подхватит его в поле reqid.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

// FromContext — entry глобального логгера с reqid, если он есть.
func FromContext(ctx context.Context) *logrus.Entry {
	if id := RequestID(ctx); id != "" {
		return Logger.WithField("reqid", id)
	}
	return logrus.NewEntry(Logger)
}
