package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/ipdd/internal/doc"
)

type mockAnalyzer struct {
	delay   time.Duration
	failOn  map[int]bool
	calls   int32
	started chan int
}

func (m *mockAnalyzer) AnalyzeRecord(ctx context.Context, inputPath string, index int, record *doc.Node) ([]string, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.started != nil {
		m.started <- index
	}
	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if m.failOn[index] {
		return nil, errors.New("analysis failed")
	}
	title, _ := record.Get("title").Text()
	return []string{fmt.Sprintf("%s#%d:%s", inputPath, index, title)}, nil
}

func records(n int) []*doc.Node {
	out := make([]*doc.Node, n)
	for i := range out {
		rec := doc.NewMapping()
		rec.Set("title", doc.NewString(fmt.Sprintf("tech-%d", i)))
		out[i] = rec
	}
	return out
}

func TestBatchProcessor_ProcessRecordsOrdered(t *testing.T) {
	analyzer := &mockAnalyzer{delay: 5 * time.Millisecond}
	processor := NewBatchProcessor(analyzer, 3)

	results := processor.ProcessRecords(context.Background(), "techs.json", records(7))

	require.Len(t, results, 7)
	for i, res := range results {
		assert.Equal(t, i, res.Index)
		require.NoError(t, res.Error)
		assert.Equal(t, []string{fmt.Sprintf("techs.json#%d:tech-%d", i, i)}, res.Paths)
	}
	assert.Equal(t, int32(7), atomic.LoadInt32(&analyzer.calls))
}

func TestBatchProcessor_ErrorsStayWithTheirRecord(t *testing.T) {
	analyzer := &mockAnalyzer{failOn: map[int]bool{1: true, 3: true}}
	processor := NewBatchProcessor(analyzer, 2)

	results := processor.ProcessRecords(context.Background(), "techs.json", records(4))

	require.Len(t, results, 4)
	assert.NoError(t, results[0].Error)
	assert.Error(t, results[1].Error)
	assert.Nil(t, results[1].Paths)
	assert.NoError(t, results[2].Error)
	assert.Error(t, results[3].Error)
}

func TestBatchProcessor_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockAnalyzer{}, 2)
	results := processor.ProcessRecords(context.Background(), "techs.json", nil)
	assert.Empty(t, results)
}

func TestBatchProcessor_Cancelled(t *testing.T) {
	analyzer := &mockAnalyzer{delay: time.Minute, started: make(chan int, 10)}
	processor := NewBatchProcessor(analyzer, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-analyzer.started
		cancel()
	}()

	results := processor.ProcessRecords(ctx, "techs.json", records(5))

	require.Len(t, results, 5)
	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.ErrorIs(t, res.Error, context.Canceled)
	}
}
