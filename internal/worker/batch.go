package worker

import (
	"context"
	"sort"

	"github.com/ppiankov/ipdd/internal/doc"
)

// RecordAnalyzer analyses one technology record of an input file and
// returns the paths of the reports it wrote
type RecordAnalyzer interface {
	AnalyzeRecord(ctx context.Context, inputPath string, index int, record *doc.Node) ([]string, error)
}

// RecordJob analyses one record. Each job owns its record; reports are
// never shared between jobs.
type RecordJob struct {
	InputPath string
	Index     int
	Record    *doc.Node
	Analyzer  RecordAnalyzer
}

// Execute runs the analysis
func (j *RecordJob) Execute(ctx context.Context) Result {
	paths, err := j.Analyzer.AnalyzeRecord(ctx, j.InputPath, j.Index, j.Record)
	return &RecordResult{Index: j.Index, Paths: paths, Error: err}
}

// RecordResult is the outcome of one record
type RecordResult struct {
	Index int
	Paths []string
	Error error
}

// GetError returns the analysis error
func (r *RecordResult) GetError() error {
	return r.Error
}

// BatchProcessor fans the records of one input file out to a worker pool
type BatchProcessor struct {
	analyzer    RecordAnalyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer RecordAnalyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessRecords analyses every record and returns results in record order.
// Records not started before ctx is cancelled are reported with ctx's error.
func (b *BatchProcessor) ProcessRecords(ctx context.Context, inputPath string, records []*doc.Node) []*RecordResult {
	if len(records) == 0 {
		return []*RecordResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	go func() {
		for i, record := range records {
			if !pool.Submit(&RecordJob{InputPath: inputPath, Index: i, Record: record, Analyzer: b.analyzer}) {
				break
			}
		}
		pool.Close()
	}()

	seen := make(map[int]bool, len(records))
	out := make([]*RecordResult, 0, len(records))
	for result := range pool.Results() {
		r := result.(*RecordResult)
		seen[r.Index] = true
		out = append(out, r)
	}

	for i := range records {
		if !seen[i] {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out = append(out, &RecordResult{Index: i, Error: err})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
