package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// 停机顺序，数字越小越早执行
const (
	OrderStopHTTPServer = 10 // 停止接受新请求并等待进行中的分析
	OrderFlushOutputs   = 20 // 刷新 Kafka 生产者和结果文件
	OrderCloseSources   = 30 // 关闭节点连接池、缓存和配置库
)

// Hook 停机处理函数
type Hook struct {
	Name  string
	Order int
	Func  func(ctx context.Context) error
}

// GracefulShutdown 优雅停机管理器
type GracefulShutdown struct {
	logger  *logrus.Logger
	timeout time.Duration

	mu       sync.Mutex
	hooks    []Hook
	started  bool
	shutting bool

	signals chan os.Signal
	trigger chan string
	done    chan struct{}
	errs    []error
}

// NewGracefulShutdown 创建优雅停机管理器
func NewGracefulShutdown(timeout time.Duration, logger *logrus.Logger) *GracefulShutdown {
	if timeout <= 0 {
		timeout = 30 * time.Second // 默认30秒超时
	}

	return &GracefulShutdown{
		logger:  logger,
		timeout: timeout,
		signals: make(chan os.Signal, 1),
		trigger: make(chan string, 1),
		done:    make(chan struct{}),
	}
}

// Register 注册停机处理函数
func (gs *GracefulShutdown) Register(name string, order int, fn func(ctx context.Context) error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	gs.hooks = append(gs.hooks, Hook{Name: name, Order: order, Func: fn})
	gs.logger.Debugf("注册停机处理函数: %s (order: %d)", name, order)
}

// Listen 开始监听 SIGINT/SIGTERM，收到信号或 Trigger 后执行停机
func (gs *GracefulShutdown) Listen() {
	gs.mu.Lock()
	if gs.started {
		gs.mu.Unlock()
		return
	}
	gs.started = true
	gs.mu.Unlock()

	signal.Notify(gs.signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var reason string
		select {
		case sig := <-gs.signals:
			reason = fmt.Sprintf("收到信号 %v", sig)
		case reason = <-gs.trigger:
		}
		signal.Stop(gs.signals)

		gs.logger.Infof("开始优雅停机: %s", reason)
		gs.run()
	}()
}

// Trigger 主动触发停机，例如服务启动失败时
func (gs *GracefulShutdown) Trigger(reason string) {
	select {
	case gs.trigger <- reason:
	default:
	}
}

// Wait 阻塞直到停机流程结束，返回各处理函数的错误
func (gs *GracefulShutdown) Wait() []error {
	<-gs.done
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.errs
}

// Shutdown 同步执行停机流程，用于未调用 Listen 的场景
func (gs *GracefulShutdown) Shutdown() []error {
	gs.run()
	return gs.Wait()
}

// IsShuttingDown 检查是否正在停机
func (gs *GracefulShutdown) IsShuttingDown() bool {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.shutting
}

// run 按顺序执行处理函数，整体受 timeout 约束
func (gs *GracefulShutdown) run() {
	gs.mu.Lock()
	if gs.shutting {
		gs.mu.Unlock()
		return
	}
	gs.shutting = true
	hooks := make([]Hook, len(gs.hooks))
	copy(hooks, gs.hooks)
	gs.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].Order < hooks[j].Order
	})

	ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
	defer cancel()

	var errs []error
	for _, hook := range hooks {
		if ctx.Err() != nil {
			gs.logger.Warnf("停机超时，跳过: %s", hook.Name)
			errs = append(errs, fmt.Errorf("%s: %w", hook.Name, ctx.Err()))
			continue
		}

		start := time.Now()
		if err := hook.Func(ctx); err != nil {
			gs.logger.Errorf("停机处理 '%s' 失败 (耗时: %v): %v", hook.Name, time.Since(start), err)
			errs = append(errs, fmt.Errorf("%s: %w", hook.Name, err))
			continue
		}
		gs.logger.Infof("停机处理 '%s' 完成 (耗时: %v)", hook.Name, time.Since(start))
	}

	gs.mu.Lock()
	gs.errs = errs
	gs.mu.Unlock()

	if len(errs) > 0 {
		gs.logger.Errorf("停机过程中发生 %d 个错误", len(errs))
	} else {
		gs.logger.Info("优雅停机流程完成")
	}
	close(gs.done)
}
