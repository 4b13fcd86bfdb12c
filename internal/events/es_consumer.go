package events

import (
	"context"
	"sync"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/elastic/go-elasticsearch/v7"

	"rollsum/pkg/logger"
)

const DefaultIndex = "conversation_events"

// ESConsumer reads events from an Emitter and writes them to Elasticsearch.
// It runs on a pooled goroutine and stops when the subscribed channel is closed.
type ESConsumer struct {
	es    *elasticsearch.Client
	index string
	done  sync.WaitGroup
}

// NewESConsumer creates a consumer that forwards events to ES.
// Call Start() to begin consuming from an emitter.
func NewESConsumer(es *elasticsearch.Client, index string) *ESConsumer {
	if index == "" {
		index = DefaultIndex
	}
	return &ESConsumer{es: es, index: index}
}

// Start begins consuming events from the emitter. Returns immediately.
func (c *ESConsumer) Start(ctx context.Context, emitter Emitter) {
	ch := emitter.Subscribe()
	c.done.Add(1)
	gopool.CtxGo(ctx, func() {
		defer c.done.Done()
		for evt := range ch {
			if err := logger.SendWrappedLog(ctx, c.es, c.index, evt.Type, evt); err != nil {
				logger.Warnf("[ESConsumer] failed to write event (type=%s): %v", evt.Type, err)
			}
		}
	})
}

// Wait blocks until every started consumer loop has drained its channel.
func (c *ESConsumer) Wait() {
	c.done.Wait()
}
