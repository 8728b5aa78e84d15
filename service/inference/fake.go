package inference

import (
	"context"
	"image"
	"sync"
)

type FakeService struct {
	mu     sync.Mutex
	result Result
	err    error
	calls  []Options
}

// NewFake returns an adapter that always answers with result (or err).
func NewFake(result Result, err error) *FakeService {
	return &FakeService{
		result: result,
		err:    err,
	}
}

func (svc *FakeService) Detect(_ context.Context, _ image.Image, opts Options) (Result, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.calls = append(svc.calls, opts)
	if svc.err != nil {
		return Result{}, svc.err
	}
	return svc.result, nil
}

func (svc *FakeService) Calls() []Options {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]Options(nil), svc.calls...)
}

func (svc *FakeService) Close() error {
	return nil
}
