package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/ipdd/internal/biblio"
	"github.com/ppiankov/ipdd/internal/doc"
	"github.com/ppiankov/ipdd/internal/model"
	"github.com/ppiankov/ipdd/internal/store"
)

const timestampLayout = "20060102_150405"

// Artifacts are the files written for one result
type Artifacts struct {
	Result       *Result
	ReportPath   string
	Bibliography string
	MarkdownPath string
	HTMLPath     string
}

// Persist writes the report and bibliography, plus the optional summaries,
// and records the run. recordIndex is -1 when the whole file was analysed.
func (p *Pipeline) Persist(ctx context.Context, result *Result, inputPath string, recordIndex int) (*Artifacts, error) {
	outDir := p.config.Output.Dir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	if recordIndex >= 0 && p.batchNaming {
		stem = fmt.Sprintf("%s_%d", stem, recordIndex)
	}
	ts := p.now().Format(timestampLayout)
	base := filepath.Join(outDir, fmt.Sprintf("%s_%s", stem, result.Type))

	art := &Artifacts{
		Result:       result,
		ReportPath:   fmt.Sprintf("%s_lifesci_dd_%s.json", base, ts),
		Bibliography: fmt.Sprintf("%s_bibliography_%s.txt", base, ts),
	}

	data, err := doc.MarshalIndent(result.Report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(art.ReportPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	if err := os.WriteFile(art.Bibliography, []byte(biblio.Build(result.Report)), 0o644); err != nil {
		return nil, fmt.Errorf("write bibliography: %w", err)
	}

	renderer := NewRenderer(p.scorer)
	if p.config.Output.Markdown {
		art.MarkdownPath = fmt.Sprintf("%s_summary_%s.md", base, ts)
		if err := os.WriteFile(art.MarkdownPath, []byte(renderer.Markdown(result)), 0o644); err != nil {
			return nil, fmt.Errorf("write markdown: %w", err)
		}
	}
	if p.config.Output.HTML {
		page, err := renderer.HTML(result)
		if err != nil {
			return nil, err
		}
		art.HTMLPath = fmt.Sprintf("%s_summary_%s.html", base, ts)
		if err := os.WriteFile(art.HTMLPath, page, 0o644); err != nil {
			return nil, fmt.Errorf("write html: %w", err)
		}
	}

	p.record(ctx, art, inputPath, recordIndex)
	return art, nil
}

func (p *Pipeline) record(ctx context.Context, art *Artifacts, inputPath string, recordIndex int) {
	if p.recorder == nil {
		return
	}
	result := art.Result
	run := store.Run{
		RunID:            result.RunID,
		InputPath:        inputPath,
		RecordIndex:      recordIndex,
		AnalysisType:     string(result.Type),
		Category:         string(result.Category),
		Model:            result.Model,
		ReportPath:       art.ReportPath,
		Bibliography:     art.Bibliography,
		Digest:           result.Digest,
		TotalCitations:   result.Repair.Total,
		ValidCitations:   result.Repair.Valid,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		Cached:           result.Cached,
		CreatedAt:        p.now().UTC().Format("2006-01-02T15:04:05.000000000Z07:00"),
	}
	if result.Composite != nil {
		score := result.Composite.Score0100
		run.Composite = &score
		run.Band = string(result.Composite.Band)
	}
	if err := p.recorder.RecordRun(ctx, run); err != nil {
		p.logger.Warn("record run failed", zap.String("run_id", result.RunID), zap.Error(err))
	}
}

// Run loads one technology record, analyses it for each type and persists
// every report. No types means a US analysis only.
func (p *Pipeline) Run(ctx context.Context, inputPath string, recordIndex int, types []model.AnalysisType) ([]*Artifacts, error) {
	tech, err := LoadTechnology(inputPath, recordIndex)
	if err != nil {
		return nil, err
	}
	return p.analyzeTypes(ctx, tech, inputPath, recordIndex, types)
}

// AnalyzeRecord analyses an already loaded record for the configured types
// and returns the paths of every file written.
func (p *Pipeline) AnalyzeRecord(ctx context.Context, inputPath string, index int, record *doc.Node) ([]string, error) {
	arts, err := p.analyzeTypes(ctx, record, inputPath, index, p.types)
	var paths []string
	for _, art := range arts {
		paths = append(paths, art.ReportPath, art.Bibliography)
		if art.MarkdownPath != "" {
			paths = append(paths, art.MarkdownPath)
		}
		if art.HTMLPath != "" {
			paths = append(paths, art.HTMLPath)
		}
	}
	return paths, err
}

func (p *Pipeline) analyzeTypes(ctx context.Context, tech *doc.Node, inputPath string, recordIndex int, types []model.AnalysisType) ([]*Artifacts, error) {
	if len(types) == 0 {
		types = []model.AnalysisType{model.AnalysisUS}
	}

	out := make([]*Artifacts, 0, len(types))
	for _, t := range types {
		result, err := p.Analyze(ctx, tech.Clone(), t)
		if err != nil {
			return out, err
		}
		art, err := p.Persist(ctx, result, inputPath, recordIndex)
		if err != nil {
			return out, err
		}
		p.logger.Info("report saved",
			zap.String("type", string(t)),
			zap.String("report", art.ReportPath),
			zap.String("bibliography", art.Bibliography))
		out = append(out, art)
	}
	return out, nil
}
