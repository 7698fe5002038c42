package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/ipdd/internal/biblio"
	"github.com/ppiankov/ipdd/internal/cache"
	"github.com/ppiankov/ipdd/internal/doc"
	"github.com/ppiankov/ipdd/internal/enhance"
	"github.com/ppiankov/ipdd/internal/extract"
	"github.com/ppiankov/ipdd/internal/llm"
	"github.com/ppiankov/ipdd/internal/model"
	"github.com/ppiankov/ipdd/internal/score"
	"github.com/ppiankov/ipdd/internal/store"
	"github.com/ppiankov/ipdd/internal/validate"
)

// RunRecorder persists a summary of each completed run
type RunRecorder interface {
	RecordRun(ctx context.Context, run store.Run) error
}

// Pipeline orchestrates one due-diligence analysis: prompt, generate,
// parse, repair, review and score.
type Pipeline struct {
	config    *model.Config
	generator llm.Generator
	cache     cache.Cache
	enhancer  enhance.Enhancer
	repairer  *validate.Repairer
	scorer    *score.Scorer
	shape     *validate.ShapeChecker
	recorder  RunRecorder
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string

	types       []model.AnalysisType
	batchNaming bool
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithCache enables the generation cache
func WithCache(c cache.Cache) Option { return func(p *Pipeline) { p.cache = c } }

// WithEnhancer replaces the enhancer built from config
func WithEnhancer(e enhance.Enhancer) Option { return func(p *Pipeline) { p.enhancer = e } }

// WithRecorder records every persisted run
func WithRecorder(r RunRecorder) Option { return func(p *Pipeline) { p.recorder = r } }

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// WithClock overrides time.Now, used for timestamps in file names and meta
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithTypes sets the analysis types AnalyzeRecord produces
func WithTypes(types ...model.AnalysisType) Option {
	return func(p *Pipeline) { p.types = append([]model.AnalysisType(nil), types...) }
}

// WithIndexedNames adds the record index to output file names so records of
// one input file do not overwrite each other
func WithIndexedNames() Option { return func(p *Pipeline) { p.batchNaming = true } }

// NewPipeline creates a pipeline. The generator may be nil, in which case
// Analyze fails with llm.ErrNoProvider.
func NewPipeline(cfg *model.Config, generator llm.Generator, opts ...Option) (*Pipeline, error) {
	classifier, err := validate.NewCitationClassifier(&cfg.Citation)
	if err != nil {
		return nil, fmt.Errorf("citation classifier: %w", err)
	}
	shape, err := validate.NewShapeChecker()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		config:    cfg,
		generator: generator,
		enhancer:  enhance.New(cfg.Enhancer),
		scorer:    score.NewScorer(&cfg.Scoring),
		shape:     shape,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	p.repairer = validate.NewRepairer(classifier, cfg.Citation.InvalidSample, p.logger)
	return p, nil
}

// Result is one analysed report with the figures reported alongside it
type Result struct {
	RunID          string
	Type           model.AnalysisType
	Category       model.Category
	CategoryScores extract.CategoryScores
	Report         *doc.Node
	Repair         validate.RepairStats
	Composite      *model.Composite
	Quality        *model.QualityAssessment
	Usage          model.TokenUsage
	Model          string
	Cached         bool
	ShapeProblems  []string
	Digest         string
}

// Analyze produces one report for a technology record. Only generation and
// parse failures are errors; enhancer and schema problems are logged.
func (p *Pipeline) Analyze(ctx context.Context, tech *doc.Node, analysisType model.AnalysisType) (*Result, error) {
	if p.generator == nil {
		return nil, llm.ErrNoProvider
	}

	category, categoryScores := extract.DetectCategory(tech)
	origin := extract.GuessOrigin(tech)
	p.logger.Info("analysis started",
		zap.String("type", string(analysisType)),
		zap.String("category", string(category)),
		zap.String("origin_hint", origin))

	addendum, err := p.enhancer.PromptAddendum(category)
	if err != nil {
		p.logger.Warn("enhancer prompt addendum failed", zap.Error(err))
		addendum = ""
	}

	techJSON, err := doc.MarshalIndent(tech)
	if err != nil {
		return nil, fmt.Errorf("encode technology: %w", err)
	}
	prompt, err := llm.BuildPacketPrompt(llm.PacketPrompt{
		Type:               analysisType,
		TechnologyJSON:     string(techJSON),
		Category:           category,
		OriginHint:         origin,
		DomainRequirements: addendum,
	})
	if err != nil {
		return nil, err
	}

	cacheKey := p.cacheKey(tech, analysisType)
	resp, cached := p.cached(cacheKey)
	if !cached {
		resp, err = p.generator.Generate(ctx, llm.GenerateRequest{
			System:    llm.SystemPrompt(),
			Prompt:    prompt,
			MaxTokens: p.config.LLM.MaxTokens,
			JSONMode:  true,
		})
		if err != nil {
			return nil, fmt.Errorf("generate %s report: %w", analysisType, err)
		}
	}

	report, err := llm.ParseDocument(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("%s report: %w", analysisType, err)
	}
	if !cached {
		p.remember(cacheKey, resp)
	}

	result := &Result{
		RunID:          p.newID(),
		Type:           analysisType,
		Category:       category,
		CategoryScores: categoryScores,
		Report:         report,
		Usage:          resp.Usage,
		Model:          resp.Model,
		Cached:         cached,
	}
	p.stampMeta(result)

	if n := biblio.NormalizeEntries(report); n > 0 {
		p.logger.Debug("normalized bibliography entries", zap.Int("count", n))
	}

	result.Repair = p.repairer.Repair(report)

	p.review(ctx, result)

	if composite, ok := p.scorer.Apply(report); ok {
		result.Composite = &composite
	}

	problems, err := p.shape.Check(report)
	if err != nil {
		p.logger.Warn("schema check failed", zap.Error(err))
	}
	for _, problem := range problems {
		p.logger.Warn("report shape", zap.String("problem", problem))
	}
	result.ShapeProblems = problems

	if digest, err := cache.Digest(report); err == nil {
		result.Digest = digest
	}

	p.logger.Info("analysis complete",
		zap.String("run_id", result.RunID),
		zap.Int("total_citations", result.Repair.Total),
		zap.Int("valid_citations", result.Repair.Valid),
		zap.String("citation_quality", result.Repair.QualityLabel()),
		zap.Bool("cached", cached))
	return result, nil
}

func (p *Pipeline) stampMeta(result *Result) {
	meta := result.Report.EnsureMapping("meta")

	usage := doc.NewMapping()
	usage.Set("prompt_tokens", doc.NewInt(result.Usage.PromptTokens))
	usage.Set("completion_tokens", doc.NewInt(result.Usage.CompletionTokens))
	usage.Set("total_tokens", doc.NewInt(result.Usage.TotalTokens))
	meta.Set("token_usage", usage)

	meta.Set("run_id", doc.NewString(result.RunID))
	meta.Set("analysis_type", doc.NewString(string(result.Type)))
	meta.Set("category", doc.NewString(string(result.Category)))
	if result.Model != "" {
		meta.Set("model", doc.NewString(result.Model))
	}
	meta.Set("generated_at", doc.NewString(p.now().UTC().Format(time.RFC3339)))
}

func (p *Pipeline) review(ctx context.Context, result *Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("domain review panicked", zap.Any("panic", r))
		}
	}()

	qa, err := p.enhancer.Review(ctx, result.Report, result.Category)
	if err != nil {
		p.logger.Warn("domain review failed", zap.Error(err))
		return
	}
	if qa == nil {
		return
	}

	node := doc.NewMapping()
	node.Set("score", doc.NewFloat(qa.Score))
	node.Set("category", doc.NewString(string(qa.Category)))
	node.Set("issues_found", doc.NewInt(qa.IssuesFound))
	node.Set("passed_validation", doc.NewBool(qa.PassedValidation))
	result.Report.Set("quality_assessment", node)
	result.Quality = qa

	if !qa.PassedValidation {
		for _, rec := range qa.Recommendations[:min(3, len(qa.Recommendations))] {
			p.logger.Info("domain recommendation", zap.String("recommendation", rec))
		}
	}
}

func (p *Pipeline) modelName() string {
	if p.config.LLM.Model != "" {
		return p.config.LLM.Model
	}
	return p.generator.Name()
}

func (p *Pipeline) cacheKey(tech *doc.Node, analysisType model.AnalysisType) string {
	if p.cache == nil {
		return ""
	}
	key, err := cache.GenerationKey(tech, string(analysisType), p.modelName())
	if err != nil {
		p.logger.Warn("cache key", zap.Error(err))
		return ""
	}
	return key
}

func (p *Pipeline) cached(key string) (*llm.GenerateResponse, bool) {
	if key == "" {
		return nil, false
	}
	data, ok := p.cache.Get(key)
	if !ok {
		return nil, false
	}
	var resp llm.GenerateResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.Text == "" {
		_ = p.cache.Delete(key)
		return nil, false
	}
	p.logger.Debug("generation cache hit", zap.String("key", key))
	return &resp, true
}

// remember caches a response. Only responses that parsed are passed in.
func (p *Pipeline) remember(key string, resp *llm.GenerateResponse) {
	if key == "" {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := p.cache.Set(key, data, 0); err != nil {
		p.logger.Warn("cache write failed", zap.Error(err))
	}
}
