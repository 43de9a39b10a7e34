package session

import (
	"context"

	"safety-chatbot/internal/domain"
	"safety-chatbot/internal/usecase"
)

// StoreExecutor runs history-store calls on a bounded worker pool so the
// line-reading loop never sits inside a blocking store call itself. The
// pool imposes no ordering; each caller awaits its own result, and the
// session submits at most one store operation per turn.
type StoreExecutor struct {
	store usecase.HistoryStore
	tasks chan func()
}

// NewStoreExecutor wraps store with a pool of the given size.
func NewStoreExecutor(store usecase.HistoryStore, workers int) *StoreExecutor {
	if workers <= 0 {
		workers = 1
	}
	e := &StoreExecutor{
		store: store,
		tasks: make(chan func()),
	}
	for i := 0; i < workers; i++ {
		go func() {
			for task := range e.tasks {
				task()
			}
		}()
	}
	return e
}

// Close stops the workers. Pending submissions finish first.
func (e *StoreExecutor) Close() {
	close(e.tasks)
}

func (e *StoreExecutor) History(ctx context.Context, userID string, limit int) ([]domain.ChatTurn, error) {
	return await(e, func() ([]domain.ChatTurn, error) {
		return e.store.History(ctx, userID, limit)
	})
}

func (e *StoreExecutor) SaveTurn(ctx context.Context, userID, userMessage, botResponse string) (domain.ChatTurn, error) {
	return await(e, func() (domain.ChatTurn, error) {
		return e.store.SaveTurn(ctx, userID, userMessage, botResponse)
	})
}

func (e *StoreExecutor) Clear(ctx context.Context, userID string) error {
	_, err := await(e, func() (struct{}, error) {
		return struct{}{}, e.store.Clear(ctx, userID)
	})
	return err
}

// await submits f to the pool and blocks until it returns.
func await[T any](e *StoreExecutor, f func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	e.tasks <- func() {
		val, err := f()
		ch <- result{val: val, err: err}
	}
	r := <-ch
	return r.val, r.err
}
