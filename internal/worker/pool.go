package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"wandernest-backend/internal/models"
)

// DeadLetterQueue receives usage records that could not be stored.
const DeadLetterQueue = models.ChatUsageQueue + ":failed"

type usageStore interface {
	Create(ctx context.Context, u *models.ChatUsage) error
}

// Pool drains the chat usage queue into the usage store.
type Pool struct {
	redis       *redis.Client
	store       usageStore
	workerCount int
	pollTimeout time.Duration
	stopChan    chan struct{}
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewPool(redisClient *redis.Client, store usageStore, workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		store:       store,
		workerCount: workerCount,
		pollTimeout: 5 * time.Second,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	log.Printf("Started %d usage worker goroutines", p.workerCount)
}

// Stop signals the workers and waits for in-flight records to finish.
func (p *Pool) Stop() {
	close(p.stopChan)
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		result, err := p.redis.BLPop(ctx, p.pollTimeout, models.ChatUsageQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				log.Printf("Worker %d: queue read failed: %v", id, err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		p.process(context.Background(), id, result[1])
	}
}

func (p *Pool) process(ctx context.Context, id int, payload string) {
	var usage models.ChatUsage
	if err := json.Unmarshal([]byte(payload), &usage); err != nil {
		log.Printf("Worker %d: failed to parse usage record: %v", id, err)
		p.deadLetter(ctx, id, payload)
		return
	}

	if err := p.store.Create(ctx, &usage); err != nil {
		log.Printf("Worker %d: failed to store usage %s: %v", id, usage.ID, err)
		p.deadLetter(ctx, id, payload)
	}
}

func (p *Pool) deadLetter(ctx context.Context, id int, payload string) {
	if err := p.redis.LPush(ctx, DeadLetterQueue, payload).Err(); err != nil {
		log.Printf("Worker %d: failed to dead-letter usage payload: %v", id, err)
	}
}
