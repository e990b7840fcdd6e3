package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/archnet/internal/core"
	"github.com/sevigo/archnet/internal/logger"
	"github.com/sevigo/archnet/internal/storage"
	"github.com/sevigo/archnet/mocks"
)

const testUser = "ada@example.com"

func sampleResult(dataset string, kind core.JobKind) *core.Result {
	return &core.Result{
		Dataset:        dataset,
		Kind:           kind,
		Models:         []core.ModelResult{{Name: "ResNet-50", Accuracy: 0.94, LatencyMS: 45}},
		Recommendation: "use ResNet-50",
		ProcessingTime: "0s",
	}
}

// catalogScorer sets up a mock scorer that knows a single dataset.
func catalogScorer(ctrl *gomock.Controller) *mocks.MockScorer {
	scorer := mocks.NewMockScorer(ctrl)
	scorer.EXPECT().HasDataset(gomock.Any()).DoAndReturn(func(d string) bool { return d == "pneumonia" }).AnyTimes()
	scorer.EXPECT().Datasets().Return([]string{"pneumonia"}).AnyTimes()
	return scorer
}

func newStoreWithUser(t *testing.T) storage.Store {
	t.Helper()
	s := storage.NewMemoryStore()
	_, _, err := s.CreateUser(context.Background(), testUser)
	require.NoError(t, err)
	return s
}

func TestSubmit_AdvancedUntilCreditsRunOut(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStoreWithUser(t)
	executor := mocks.NewMockExecutor(ctrl)
	executor.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil).Times(core.SignupCredits)

	d := NewDispatcher(store, catalogScorer(ctrl), executor, logger.Discard())

	for range core.SignupCredits {
		job, err := d.Submit(ctx, testUser, core.JobKindAdvanced, core.JobParams{Dataset: "pneumonia"})
		require.NoError(t, err)
		assert.Equal(t, core.JobStatusPending, job.Status)
	}

	balance, err := store.GetBalance(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	job, err := d.Submit(ctx, testUser, core.JobKindAdvanced, core.JobParams{Dataset: "pneumonia"})
	assert.ErrorIs(t, err, core.ErrInsufficientBalance)
	assert.Nil(t, job)

	jobs, err := store.ListJobsByUser(ctx, testUser, core.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, jobs, core.SignupCredits, "a rejected submission must not create a job")
}

func TestSubmit_QuickIsFreeAndCompletesInline(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStoreWithUser(t)
	scorer := catalogScorer(ctrl)
	scorer.EXPECT().Score(gomock.Any(), "pneumonia", core.JobKindQuick).Return(sampleResult("pneumonia", core.JobKindQuick), nil)

	d := NewDispatcher(store, scorer, mocks.NewMockExecutor(ctrl), logger.Discard())

	job, err := d.Submit(ctx, testUser, core.JobKindQuick, core.JobParams{})
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, "pneumonia", job.Result.Dataset)
	assert.NotNil(t, job.CompletedAt)

	balance, err := store.GetBalance(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, core.SignupCredits, balance)
}

func TestSubmit_QuickScorerFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStoreWithUser(t)
	scorer := catalogScorer(ctrl)
	scorer.EXPECT().Score(gomock.Any(), "pneumonia", core.JobKindQuick).Return(nil, errors.New("gpu on fire"))

	d := NewDispatcher(store, scorer, mocks.NewMockExecutor(ctrl), logger.Discard())

	job, err := d.Submit(ctx, testUser, core.JobKindQuick, core.JobParams{Dataset: "pneumonia"})
	assert.ErrorIs(t, err, core.ErrExecutionFailure)
	require.NotNil(t, job)
	assert.Equal(t, core.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "gpu on fire")
	assert.Nil(t, job.Result)
}

func TestSubmit_ValidationChargesNothing(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		kind   core.JobKind
		params core.JobParams
	}{
		{name: "unknown kind", kind: core.JobKind("gold"), params: core.JobParams{Dataset: "pneumonia"}},
		{name: "unknown dataset", kind: core.JobKindAdvanced, params: core.JobParams{Dataset: "diabetes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := newStoreWithUser(t)
			d := NewDispatcher(store, catalogScorer(ctrl), mocks.NewMockExecutor(ctrl), logger.Discard())

			_, err := d.Submit(ctx, testUser, tt.kind, tt.params)
			assert.ErrorIs(t, err, core.ErrValidation)

			balance, err := store.GetBalance(ctx, testUser)
			require.NoError(t, err)
			assert.Equal(t, core.SignupCredits, balance)

			jobs, err := store.ListJobsByUser(ctx, testUser, core.JobFilter{})
			require.NoError(t, err)
			assert.Empty(t, jobs)
		})
	}
}

func TestSubmit_QueueFullLeavesJobPending(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStoreWithUser(t)
	executor := mocks.NewMockExecutor(ctrl)
	executor.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(core.ErrQueueFull)

	d := NewDispatcher(store, catalogScorer(ctrl), executor, logger.Discard())

	job, err := d.Submit(ctx, testUser, core.JobKindAdvanced, core.JobParams{Dataset: "pneumonia"})
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, job.Status)

	stored, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, stored.Status)

	balance, err := store.GetBalance(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, core.SignupCredits-1, balance)
}

func TestSubmit_UnknownUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	d := NewDispatcher(storage.NewMemoryStore(), catalogScorer(ctrl), mocks.NewMockExecutor(ctrl), logger.Discard())

	_, err := d.Submit(context.Background(), "ghost@example.com", core.JobKindAdvanced, core.JobParams{})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSubmit_ConcurrentAdvancedWithOneCredit(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStoreWithUser(t)
	_, err := store.TryDebit(ctx, testUser, core.SignupCredits-1)
	require.NoError(t, err)

	executor := mocks.NewMockExecutor(ctrl)
	executor.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	d := NewDispatcher(store, catalogScorer(ctrl), executor, logger.Discard())

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		rejected atomic.Int32
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Submit(ctx, testUser, core.JobKindAdvanced, core.JobParams{Dataset: "pneumonia"})
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, core.ErrInsufficientBalance):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(9), rejected.Load())

	balance, err := store.GetBalance(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}
