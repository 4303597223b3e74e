package tour

import "time"

// Ticker 轮询计时器，测试里用手动触发的实现替换
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc 按间隔创建计时器
type TickerFunc func(time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker 基于 time.Ticker 的默认实现
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}
