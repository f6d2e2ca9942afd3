package extract

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialcheck/vialcheck-cli/internal/model"
)

// fakeBackend returns canned records keyed by image path.
type fakeBackend struct {
	records map[string]*model.ExtractionRecord
	calls   int
}

func (f *fakeBackend) Extract(_ context.Context, imagePath string) (*model.ExtractionRecord, error) {
	f.calls++
	rec, ok := f.records[imagePath]
	if !ok {
		return nil, &ParseError{Provider: "fake", Err: eris.New("bad response")}
	}
	return rec, nil
}

func (f *fakeBackend) Name() string         { return "fake" }
func (f *fakeBackend) CostPerCall() float64 { return 0.01 }
func (f *fakeBackend) SupportsBatch() bool  { return false }

func record(task string) *model.ExtractionRecord {
	return &model.ExtractionRecord{TaskNumber: model.NewFlex(task)}
}

func TestProcessBatch(t *testing.T) {
	backend := &fakeBackend{records: map[string]*model.ExtractionRecord{
		"a.jpg": record("1"),
		"b.jpg": record("2"),
		"c.jpg": record("3"),
	}}
	orch := NewOrchestrator(backend, 0, 1)

	var progress [][2]int
	records, failures := orch.ProcessBatch(context.Background(),
		[]string{"a.jpg", "b.jpg", "c.jpg"},
		func(done, total int) { progress = append(progress, [2]int{done, total}) },
	)

	require.Len(t, records, 3)
	assert.Empty(t, failures)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
}

func TestProcessBatchSkipsFailedItems(t *testing.T) {
	backend := &fakeBackend{records: map[string]*model.ExtractionRecord{
		"a.jpg": record("1"),
		"c.jpg": record("3"),
	}}
	orch := NewOrchestrator(backend, 0, 1)

	records, failures := orch.ProcessBatch(context.Background(),
		[]string{"a.jpg", "broken.jpg", "c.jpg"}, nil)

	// Output length is total minus failed; the batch never aborts.
	require.Len(t, records, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, "broken.jpg", failures[0].ImagePath)
	assert.Equal(t, 3, backend.calls)
}

func TestProcessBatchCancellation(t *testing.T) {
	backend := &fakeBackend{records: map[string]*model.ExtractionRecord{
		"a.jpg": record("1"),
	}}
	orch := NewOrchestrator(backend, 0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, failures := orch.ProcessBatch(ctx, []string{"a.jpg", "b.jpg"}, nil)
	assert.LessOrEqual(t, len(records)+len(failures), 2)
	assert.Less(t, backend.calls, 2)
}

// blockingBackend parks every Extract call until release closes, so a test
// can observe how many workers run at once.
type blockingBackend struct {
	started chan string
	release chan struct{}
}

func (b *blockingBackend) Extract(_ context.Context, imagePath string) (*model.ExtractionRecord, error) {
	b.started <- imagePath
	<-b.release
	return record(imagePath), nil
}

func (b *blockingBackend) Name() string         { return "blocking" }
func (b *blockingBackend) CostPerCall() float64 { return 0 }
func (b *blockingBackend) SupportsBatch() bool  { return false }

func TestProcessBatchRunsWorkersConcurrently(t *testing.T) {
	backend := &blockingBackend{
		started: make(chan string, 2),
		release: make(chan struct{}),
	}
	orch := NewOrchestrator(backend, 0, 2)

	type batchOut struct {
		records  []*model.ExtractionRecord
		failures []ItemError
	}
	out := make(chan batchOut, 1)
	go func() {
		records, failures := orch.ProcessBatch(context.Background(), []string{"a.jpg", "b.jpg"}, nil)
		out <- batchOut{records, failures}
	}()

	// Both items must be in flight before either completes.
	for range 2 {
		select {
		case <-backend.started:
		case <-time.After(2 * time.Second):
			t.Fatal("second worker never started")
		}
	}
	close(backend.release)

	got := <-out
	require.Len(t, got.records, 2)
	assert.Empty(t, got.failures)

	// Output keeps input order even with parallel workers.
	first, _ := got.records[0].TaskNumber.Value()
	second, _ := got.records[1].TaskNumber.Value()
	assert.Equal(t, "a.jpg", first)
	assert.Equal(t, "b.jpg", second)
}

func TestEstimateCost(t *testing.T) {
	backend := &fakeBackend{}
	assert.InDelta(t, 0.4, EstimateCost(backend, 40), 1e-9)
}
