package utils

import (
	"sync"

	"go.uber.org/zap"
)

// WorkerPool 固定数量的 worker 消费任务队列
type WorkerPool struct {
	jobs      chan func()
	workerNum int
	wg        sync.WaitGroup
	quit      chan struct{}
	stopOnce  sync.Once
	log       *zap.Logger
}

// NewWorkerPool 创建协程池，需调用 Start 启动
func NewWorkerPool(workerNum, queueSize int, log *zap.Logger) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &WorkerPool{
		jobs:      make(chan func(), queueSize),
		workerNum: workerNum,
		quit:      make(chan struct{}),
		log:       log,
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.workerNum; i++ {
		p.wg.Add(1)
		go p.loop(i)
	}
	p.log.Info("worker pool started", zap.Int("workers", p.workerNum), zap.Int("queue", cap(p.jobs)))
}

func (p *WorkerPool) loop(workerID int) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			p.run(workerID, job)
		case <-p.quit:
			return
		}
	}
}

// run 单个任务 panic 不影响 worker
func (p *WorkerPool) run(workerID int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker panic", zap.Int("worker", workerID), zap.Any("panic", r))
		}
	}()
	job()
}

// Submit 队列满时阻塞，直到有空位；池已停止返回 false
func (p *WorkerPool) Submit(job func()) bool {
	select {
	case <-p.quit:
		return false
	default:
	}
	select {
	case p.jobs <- job:
		return true
	case <-p.quit:
		return false
	}
}

// Done 池停止后关闭
func (p *WorkerPool) Done() <-chan struct{} {
	return p.quit
}

// Stop 停止接收任务并等待 worker 退出，队列中未执行的任务被丢弃
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.wg.Wait()
	})
}
