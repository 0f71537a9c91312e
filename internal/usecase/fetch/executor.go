package fetch

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"game-pulse/internal/domain"
)

// Status — классификация исхода одного обращения к источнику.
type Status string

const (
	// StatusValid — источник вернул значение.
	StatusValid Status = "valid"
	// StatusInvalid — источник явно сообщил, что id не отслеживается.
	StatusInvalid Status = "invalid"
	// StatusError — временная ошибка, игра будет опрошена в следующем цикле.
	StatusError Status = "error"
)

// Result — исход обращения к источнику по одной игре.
type Result[T any] struct {
	Value  T
	Status Status
	Err    error
}

// Func выполняет одно обращение к источнику. Таймауты и повторы —
// ответственность самой функции, исполнитель их не навязывает.
type Func[T any] func(ctx context.Context, appID int64) (T, error)

// ProgressFunc вызывается периодически с числом обработанных игр.
type ProgressFunc func(done, total int)

// Executor ограничивает число одновременных обращений к источнику.
// Ошибка по одной игре фиксируется в её результате и не прерывает остальных.
type Executor struct {
	concurrency  int
	progressStep int
}

// NewExecutor создаёт исполнитель. Значения меньше 1 заменяются умолчаниями:
// 15 одновременных обращений, прогресс каждые 50 игр.
func NewExecutor(concurrency, progressStep int) *Executor {
	if concurrency < 1 {
		concurrency = 15
	}
	if progressStep < 1 {
		progressStep = 50
	}
	return &Executor{concurrency: concurrency, progressStep: progressStep}
}

// Execute опрашивает все игры с ограничением одновременности и собирает
// результаты в карту по app id. onProgress может быть nil.
func Execute[T any](ctx context.Context, e *Executor, appIDs []int64, fn Func[T], onProgress ProgressFunc) map[int64]Result[T] {
	results := make(map[int64]Result[T], len(appIDs))
	if len(appIDs) == 0 {
		return results
	}

	var (
		mu   sync.Mutex
		done int
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)

	total := len(appIDs)
	for _, appID := range appIDs {
		appID := appID
		group.Go(func() error {
			value, err := fn(groupCtx, appID)
			result := Result[T]{Value: value, Status: StatusValid, Err: err}
			switch {
			case errors.Is(err, domain.ErrAppInvalid):
				result.Status = StatusInvalid
			case err != nil:
				result.Status = StatusError
			}

			mu.Lock()
			results[appID] = result
			done++
			notify := onProgress != nil && (done%e.progressStep == 0 || done == total)
			current := done
			mu.Unlock()

			if notify {
				onProgress(current, total)
			}
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// SplitByStatus раскладывает результаты на валидные значения, явно
// невалидные id и id с временными ошибками.
func SplitByStatus[T any](results map[int64]Result[T]) (valid map[int64]T, invalid, failed []int64) {
	valid = make(map[int64]T)
	for appID, result := range results {
		switch result.Status {
		case StatusValid:
			valid[appID] = result.Value
		case StatusInvalid:
			invalid = append(invalid, appID)
		default:
			failed = append(failed, appID)
		}
	}
	return valid, invalid, failed
}
