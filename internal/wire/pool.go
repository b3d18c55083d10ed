package wire

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// workerFunc processes one queued task; a non-nil error is fatal to the
// worker goroutine that returned it.
type workerFunc = func(t *tomb.Tomb, task any) error

// workerPool runs a fixed number of goroutines pulling tasks off a shared
// channel.
type workerPool struct {
	n     int
	tasks chan any
}

func newWorkerPool(size int) *workerPool {
	return &workerPool{n: size, tasks: make(chan any, taskChanSize)}
}

// AddTask enqueues a task for an idle worker to pick up.
func (pool *workerPool) AddTask(task any) {
	pool.tasks <- task
}

// Setup spawns pool.n worker goroutines under t, each running work against
// tasks pulled from the shared channel until t is dying.
func (pool *workerPool) Setup(t *tomb.Tomb, work workerFunc) {
	log.Info().Int("workers", pool.n).Msg("starting wire session workers")
	for i := 0; i < pool.n; i++ {
		t.Go(func() error {
			return pool.worker(t, work)
		})
	}
}

func (pool *workerPool) worker(t *tomb.Tomb, work workerFunc) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Msg("wire session worker exiting")
				return err
			}
		}
	}
}
