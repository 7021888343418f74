package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	kit "funnelbot/internal/transport"
	logx "funnelbot/pkg/logx"
)

type request struct {
	kind   string // "cmd:start", "content", "cb:<tag>"
	chat   kit.ChatTarget
	fromID int64
}

type handlerFunc func(ctx context.Context, req *request) error

type middleware func(next handlerFunc) handlerFunc

func chain(h handlerFunc, m ...middleware) handlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func mwTimeout(d time.Duration) middleware {
	return func(next handlerFunc) handlerFunc {
		return func(ctx context.Context, req *request) error {
			if d <= 0 {
				return next(ctx, req)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

func mwPanicRecover(log logx.Logger) middleware {
	return func(next handlerFunc) handlerFunc {
		return func(ctx context.Context, req *request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered",
						logx.Any("panic", r),
						logx.Stack(string(debug.Stack())),
					)
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func mwRequestLog(log logx.Logger) middleware {
	return func(next handlerFunc) handlerFunc {
		return func(ctx context.Context, req *request) error {
			start := time.Now()
			err := next(ctx, req)
			fields := []logx.Field{
				logx.String("kind", req.kind),
				logx.Int64("chat_id", req.chat.ChatID),
				logx.Int64("from_id", req.fromID),
				logx.Duration("dur", time.Since(start)),
			}
			if err != nil {
				// Users never see handler errors; the log is the only witness.
				log.Warn("request failed", append(fields, logx.Err(err))...)
			} else {
				log.Debug("request ok", fields...)
			}
			return err
		}
	}
}
