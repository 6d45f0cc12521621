package safego

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// Go 启动带 panic 恢复的 goroutine
// onPanic 可为 nil，非 nil 时在恢复后以 panic 转换出的 error 调用
func Go(ctx context.Context, fn func(), onPanic func(error)) {
	go func() {
		defer Recovery(ctx, onPanic)

		fn()
	}()
}

// Recovery 捕获 panic 并记录堆栈，需直接 defer 调用
func Recovery(ctx context.Context, onPanic func(error)) {
	e := recover()
	if e == nil {
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}

	err := fmt.Errorf("panic: %v", e)
	log.Error().Ctx(ctx).Err(err).Str("stacktrace", string(debug.Stack())).Msg("[catch panic]")
	if onPanic != nil {
		onPanic(err)
	}
}
