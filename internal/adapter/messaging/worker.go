package messaging

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-booking/internal/core/domain"
	"github.com/rl1809/inventory-booking/internal/port"
)

const publishTimeout = 5 * time.Second

// WorkerPool drains the event queue into a publisher until the queue closes.
type WorkerPool struct {
	publisher port.EventPublisher
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func NewWorkerPool(publisher port.EventPublisher, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{publisher: publisher, logger: logger}
}

func (p *WorkerPool) Start(n int, queue <-chan domain.BookingEvent) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.workerLoop(id, queue)
		}(i)
	}
	p.logger.Info("started event workers", zap.Int("count", n))
}

// Wait blocks until every worker has seen the queue close.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) workerLoop(id int, queue <-chan domain.BookingEvent) {
	for event := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)

		if err := p.publisher.Publish(ctx, event); err != nil {
			p.logger.Error("publish event failed",
				zap.Int("worker", id),
				zap.String("type", string(event.Type)),
				zap.String("reference", event.Reference),
				zap.Error(err),
			)
		} else {
			p.logger.Debug("published event",
				zap.Int("worker", id),
				zap.String("type", string(event.Type)),
				zap.String("reference", event.Reference),
			)
		}

		cancel()
	}
}
