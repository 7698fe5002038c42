package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/ipdd/internal/cache"
	"github.com/ppiankov/ipdd/internal/llm"
	"github.com/ppiankov/ipdd/internal/model"
	"github.com/ppiankov/ipdd/internal/pipeline"
	"github.com/ppiankov/ipdd/internal/store"
)

const generatorAttempts = 3

// newGenerator builds the report generator with retries. A missing
// provider is an error here; every command that calls this needs one.
func newGenerator(c *model.Config, log *zap.Logger) (llm.Generator, error) {
	g, err := llm.NewGenerator(llm.ConfigFromModel(c.LLM, c.HTTP))
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}
	if g == nil {
		return nil, llm.ErrNoProvider
	}
	return llm.WithRetry(g, generatorAttempts, log), nil
}

// newPipeline wires the generator, cache and run store from config. The
// returned close func releases the store.
func newPipeline(c *model.Config, log *zap.Logger, opts ...pipeline.Option) (*pipeline.Pipeline, func(), error) {
	g, err := newGenerator(c, log)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {}
	all := []pipeline.Option{pipeline.WithLogger(log)}
	if c.Cache.Enabled {
		all = append(all, pipeline.WithCache(cache.NewLayeredCache(c.Cache.MemoryTTL, c.Cache.Dir, c.Cache.DiskTTL)))
	}
	if c.Store.Enabled {
		s, err := store.Open(c.Store.Path)
		if err != nil {
			log.Warn("run history disabled", zap.Error(err))
		} else {
			all = append(all, pipeline.WithRecorder(s))
			closeFn = func() { _ = s.Close() }
		}
	}
	all = append(all, opts...)

	p, err := pipeline.NewPipeline(c, g, all...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return p, closeFn, nil
}

func parseTypes(values []string) ([]model.AnalysisType, error) {
	out := make([]model.AnalysisType, 0, len(values))
	for _, v := range values {
		t, ok := model.ParseAnalysisType(v)
		if !ok {
			return nil, fmt.Errorf("unknown analysis type %q (supported: us, global)", v)
		}
		out = append(out, t)
	}
	return out, nil
}
