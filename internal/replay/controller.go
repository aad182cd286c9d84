package replay

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"replaylab/internal/logger"
	"replaylab/internal/market"
)

// State 是播放控制器的状态机取值。
type State string

const (
	StateStopped  State = "stopped"
	StatePlaying  State = "playing"
	StateFinished State = "finished"
)

// ErrInvalidCursorState 表示在空序列或越界游标上执行了操作。
var ErrInvalidCursorState = errors.New("invalid cursor state")

// DefaultBasePeriod 为 1x 速度下的推进周期。
const DefaultBasePeriod = time.Second

// Snapshot 是游标状态的只读快照，供接口层返回。
type Snapshot struct {
	Index     int     `json:"index"`
	Total     int     `json:"total"`
	State     State   `json:"state"`
	Speed     float64 `json:"speed"`
	Time      int64   `json:"time,omitempty"`
	Close     float64 `json:"close,omitempty"`
	Synthetic bool    `json:"synthetic,omitempty"`
}

// Controller 持有回放游标并独占它的推进定时器。
// 约束：任一时刻至多存在一个活跃 tick 源；Play 在播放中为幂等 no-op，
// 不会叠加第二个定时器。所有状态变更都发生在锁内，tick goroutine
// 在锁外休眠、锁内推进。
type Controller struct {
	mu         sync.Mutex
	series     *market.Series
	index      int
	state      State
	speed      float64
	basePeriod time.Duration

	ticking   bool          // tick goroutine 是否存活
	stopCh    chan struct{} // 通知当前 tick 源退出
	gen       int           // tick 源代次，旧 goroutine 凭它识别自己已被替换
	onAdvance func(index int)
}

// NewController 绑定序列。空序列合法，游标为 -1，推进操作将被拒绝。
func NewController(series *market.Series, basePeriod time.Duration) *Controller {
	if basePeriod <= 0 {
		basePeriod = DefaultBasePeriod
	}
	idx := -1
	if series.Len() > 0 {
		idx = 0
	}
	return &Controller{
		series:     series,
		index:      idx,
		state:      StateStopped,
		speed:      1,
		basePeriod: basePeriod,
	}
}

// OnAdvance 注册游标推进后的回调（指标重算、未实现盈亏刷新等）。
// 回调在锁外执行。
func (c *Controller) OnAdvance(fn func(index int)) {
	c.mu.Lock()
	c.onAdvance = fn
	c.mu.Unlock()
}

// Index 返回当前游标下标（空序列为 -1）。
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// State 返回状态机当前值。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current 返回游标所指 K 线。空序列返回 ErrInvalidCursorState。
func (c *Controller) Current() (market.Candle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	candle, ok := c.series.At(c.index)
	if !ok {
		return market.Candle{}, ErrInvalidCursorState
	}
	return candle, nil
}

// Snapshot 返回只读状态快照。
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Index: c.index,
		Total: c.series.Len(),
		State: c.state,
		Speed: c.speed,
	}
	if candle, ok := c.series.At(c.index); ok {
		snap.Time = candle.OpenTime
		snap.Close = candle.Close
	}
	return snap
}

// Play 开始自动推进。已在播放中为 no-op；游标已到末尾时同样 no-op，
// 调用方应先检查 Finished。空序列返回 ErrInvalidCursorState。
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.series.Len() == 0 {
		return ErrInvalidCursorState
	}
	if c.state == StatePlaying {
		return nil
	}
	if c.index >= c.series.Len()-1 {
		c.state = StateFinished
		return nil
	}
	c.state = StatePlaying
	c.startTickLocked()
	return nil
}

// Pause 停止自动推进；幂等。
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTickLocked()
	if c.state == StatePlaying {
		c.state = StateStopped
	}
}

// Step 手动推进一格，末尾截断。播放中不允许手动步进。
func (c *Controller) Step() error {
	c.mu.Lock()
	if c.series.Len() == 0 {
		c.mu.Unlock()
		return ErrInvalidCursorState
	}
	if c.state == StatePlaying {
		c.mu.Unlock()
		return fmt.Errorf("播放中不支持手动步进，请先暂停")
	}
	fn, idx := c.advanceLocked()
	c.mu.Unlock()
	if fn != nil {
		fn(idx)
	}
	return nil
}

// Seek 按百分比（0..100）定位游标：index = floor(fraction/100 * (len-1))。
// 任何状态下均允许；播放中会从新位置继续播放。
func (c *Controller) Seek(fraction float64) error {
	c.mu.Lock()
	n := c.series.Len()
	if n == 0 {
		c.mu.Unlock()
		return ErrInvalidCursorState
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 100 {
		fraction = 100
	}
	c.index = int(fraction / 100 * float64(n-1))
	wasPlaying := c.state == StatePlaying
	if c.index >= n-1 {
		c.stopTickLocked()
		c.state = StateFinished
		wasPlaying = false
	} else if c.state == StateFinished {
		c.state = StateStopped
	}
	if wasPlaying {
		// 重启定时器，避免旧节奏在新位置上半拍触发。
		c.stopTickLocked()
		c.startTickLocked()
	}
	fn, idx := c.onAdvance, c.index
	c.mu.Unlock()
	if fn != nil {
		fn(idx)
	}
	return nil
}

// SetSpeed 调整速度倍率。播放中采用先停后起的方式重建定时器，
// 不会漏拍也不会双发。
func (c *Controller) SetSpeed(multiplier float64) error {
	if multiplier <= 0 {
		return fmt.Errorf("速度倍率必须为正: %v", multiplier)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = multiplier
	if c.state == StatePlaying {
		c.stopTickLocked()
		c.startTickLocked()
	}
	return nil
}

// Close 确定性地回收 tick 源。会话销毁时必须调用，防止悬挂定时器
// 在宿主被拆除后继续改状态。
func (c *Controller) Close() {
	c.Pause()
}

// startTickLocked 启动唯一的 tick goroutine。调用方必须持锁，
// 且保证当前没有活跃 tick 源。
func (c *Controller) startTickLocked() {
	if c.ticking {
		logger.Warnf("[replay] tick 源已存在，拒绝重复启动")
		return
	}
	c.ticking = true
	c.gen++
	gen := c.gen
	stop := make(chan struct{})
	c.stopCh = stop
	period := c.tickPeriodLocked()
	go c.tickLoop(gen, period, stop)
}

// stopTickLocked 通知当前 tick 源退出。调用方必须持锁。
func (c *Controller) stopTickLocked() {
	if !c.ticking {
		return
	}
	close(c.stopCh)
	c.stopCh = nil
	c.ticking = false
}

func (c *Controller) tickPeriodLocked() time.Duration {
	period := time.Duration(float64(c.basePeriod) / c.speed)
	if period < time.Millisecond {
		period = time.Millisecond
	}
	return period
}

func (c *Controller) tickLoop(gen int, period time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		c.mu.Lock()
		// 自己已被 stop/重启替换时放弃推进，避免双源竞争。
		if gen != c.gen || c.state != StatePlaying {
			c.mu.Unlock()
			return
		}
		fn, idx := c.advanceLocked()
		finished := c.state == StateFinished
		c.mu.Unlock()
		if fn != nil {
			fn(idx)
		}
		if finished {
			return
		}
	}
}

// advanceLocked 推进一格并处理末尾转移，返回待执行的回调。调用方持锁。
func (c *Controller) advanceLocked() (func(int), int) {
	last := c.series.Len() - 1
	if c.index < last {
		c.index++
	}
	if c.index >= last {
		c.index = last
		if c.state == StatePlaying {
			c.ticking = false
			if c.stopCh != nil {
				close(c.stopCh)
				c.stopCh = nil
			}
		}
		c.state = StateFinished
	}
	return c.onAdvance, c.index
}
