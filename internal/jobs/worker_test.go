package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockReindexer is a mock implementation of Reindexer
type MockReindexer struct {
	mock.Mock
}

func (m *MockReindexer) ReindexPending(ctx context.Context, limit int) (int, int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Int(1), args.Error(2)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// Let it run for a bit
	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// Let it run for a bit
	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ProcessingErrorsDoNotStopTheLoop tests that a failing tick is logged and retried
func TestWorker_ProcessingErrorsDoNotStopTheLoop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("tick failed"))

	worker := NewWorker(mockProcessor, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(180 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	assert.GreaterOrEqual(t, len(mockProcessor.Calls), 2)
}

// TestReindexWorker_ProcessJobs tests one reconciliation tick
func TestReindexWorker_ProcessJobs(t *testing.T) {
	mockService := new(MockReindexer)
	mockService.On("ReindexPending", mock.Anything, 25).Return(2, 2, nil)

	worker := NewReindexWorker(mockService, 25)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockService.AssertExpectations(t)
}

// TestReindexWorker_DefaultBatchSize tests the batch size fallback
func TestReindexWorker_DefaultBatchSize(t *testing.T) {
	mockService := new(MockReindexer)
	mockService.On("ReindexPending", mock.Anything, DefaultReindexBatchSize).Return(0, 0, nil)

	worker := NewReindexWorker(mockService, 0)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockService.AssertExpectations(t)
}

// TestReindexWorker_ProcessJobs_Error tests reconciliation error handling
func TestReindexWorker_ProcessJobs_Error(t *testing.T) {
	mockService := new(MockReindexer)
	mockService.On("ReindexPending", mock.Anything, DefaultReindexBatchSize).
		Return(0, 0, errors.New("database error"))

	worker := NewReindexWorker(mockService, -1)
	err := worker.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reindex pending chunks")
	mockService.AssertExpectations(t)
}
