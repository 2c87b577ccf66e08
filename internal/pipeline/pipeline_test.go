package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metno/netcdf-ondemand/internal/domain"
	"github.com/metno/netcdf-ondemand/internal/observability"
)

type mockExtractor struct {
	requests []domain.ConversionRequest
	errs     []error
	calls    int
}

func (m *mockExtractor) Extract(ctx context.Context) (domain.ConversionRequest, error) {
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return domain.ConversionRequest{}, m.errs[i]
	}
	if i < len(m.requests) {
		return m.requests[i], nil
	}
	<-ctx.Done()
	return domain.ConversionRequest{}, ctx.Err()
}

type mockProcessor struct {
	calls int
}

func (m *mockProcessor) ProcessRequest(_ context.Context, req domain.ConversionRequest) domain.Report {
	m.calls++
	return domain.Report{RequestID: req.ID, Recipients: req.Recipients}
}

type mockLoader struct {
	reports []domain.Report
	err     error
}

func (m *mockLoader) Load(_ context.Context, rep domain.Report) error {
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, rep)
	return nil
}

func runUntilDone(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

func TestPipelineRun(t *testing.T) {
	t.Run("processes and publishes requests in order", func(t *testing.T) {
		committed := 0
		extractor := &mockExtractor{requests: []domain.ConversionRequest{
			{ID: "req-1", Commit: func(context.Context) error { committed++; return nil }},
			{ID: "req-2", Commit: func(context.Context) error { committed++; return nil }},
		}}
		processor := &mockProcessor{}
		loader := &mockLoader{}
		p := New(extractor, processor, loader, discardLogger(), observability.NewMetricsForTesting())

		runUntilDone(t, p)

		assert.Equal(t, 2, processor.calls)
		require.Len(t, loader.reports, 2)
		assert.Equal(t, "req-1", loader.reports[0].RequestID)
		assert.Equal(t, "req-2", loader.reports[1].RequestID)
		assert.Equal(t, 2, committed)
	})

	t.Run("recovers from extract errors with backoff", func(t *testing.T) {
		extractor := &mockExtractor{
			errs:     []error{errors.New("broker down"), errors.New("still down"), nil},
			requests: []domain.ConversionRequest{{}, {}, {ID: "req-1"}},
		}
		loader := &mockLoader{}
		p := New(extractor, &mockProcessor{}, loader, discardLogger(), observability.NewMetricsForTesting())

		runUntilDone(t, p)

		require.Len(t, loader.reports, 1)
		assert.Equal(t, "req-1", loader.reports[0].RequestID)
		assert.GreaterOrEqual(t, extractor.calls, 3)
	})

	t.Run("publish failure still commits the request", func(t *testing.T) {
		committed := 0
		extractor := &mockExtractor{requests: []domain.ConversionRequest{
			{ID: "req-1", Commit: func(context.Context) error { committed++; return nil }},
		}}
		loader := &mockLoader{err: errors.New("report topic unavailable")}
		p := New(extractor, &mockProcessor{}, loader, discardLogger(), observability.NewMetricsForTesting())

		runUntilDone(t, p)

		assert.Equal(t, 1, committed, "handled work must not be redelivered on restart")
	})

	t.Run("stops promptly on cancellation", func(t *testing.T) {
		extractor := &mockExtractor{}
		p := New(extractor, &mockProcessor{}, &mockLoader{}, discardLogger(), observability.NewMetricsForTesting())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- p.Run(ctx) }()
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("pipeline did not stop after cancellation")
		}
	})
}

func TestCheckReadiness(t *testing.T) {
	extractor := &mockExtractor{requests: []domain.ConversionRequest{{ID: "req-1"}}}
	p := New(extractor, &mockProcessor{}, &mockLoader{}, discardLogger(), observability.NewMetricsForTesting())

	require.Error(t, p.CheckReadiness(context.Background()), "not ready before the first request")

	runUntilDone(t, p)

	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond, 5*time.Second))
	assert.Equal(t, 5*time.Second, nextBackoff(3*time.Second, 5*time.Second))
	assert.Equal(t, 5*time.Second, nextBackoff(5*time.Second, 5*time.Second))
}

func TestSleepWithContext(t *testing.T) {
	t.Run("returns true after sleeping", func(t *testing.T) {
		assert.True(t, sleepWithContext(context.Background(), time.Millisecond))
	})

	t.Run("zero duration returns immediately", func(t *testing.T) {
		assert.True(t, sleepWithContext(context.Background(), 0))
	})

	t.Run("cancellation interrupts the sleep", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.False(t, sleepWithContext(ctx, time.Minute))
	})
}
