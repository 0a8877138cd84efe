package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
	"github.com/cmtemkin/needham-navigator-sub000/internal/core/ports"
)

// RetrieveUseCase is the stateless query-time pipeline: expansion,
// parallel multi-signal search, merge, rerank, diversity selection.
type RetrieveUseCase struct {
	embedder     ports.Embedder
	vectorDB     ports.VectorStore
	rewriter     ports.QueryRewriter
	crossEncoder ports.CrossEncoder
	rules        compiledRules
	defaults     domain.RetrievalConfig
	logger       *slog.Logger
}

// NewRetrieveUseCase wires the retrieval pipeline. rewriter and
// crossEncoder may be nil; the pipeline degrades without them. Invalid
// expansion patterns are configuration errors and fail construction.
func NewRetrieveUseCase(
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	rewriter ports.QueryRewriter,
	crossEncoder ports.CrossEncoder,
	rules domain.ExpansionRules,
	defaults domain.RetrievalConfig,
	logger *slog.Logger,
) (*RetrieveUseCase, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, fmt.Errorf("compile expansion rules: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrieveUseCase{
		embedder:     embedder,
		vectorDB:     vectorDB,
		rewriter:     rewriter,
		crossEncoder: crossEncoder,
		rules:        compiled,
		defaults:     defaults.Normalize(),
		logger:       logger,
	}, nil
}

func (uc *RetrieveUseCase) Retrieve(
	ctx context.Context,
	query, tenantID string,
	cfg domain.RetrievalConfig,
) ([]domain.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	merged := cfg.Merged(uc.defaults)
	filter := domain.SearchFilter{TenantID: tenantID}

	forms := uc.queryForms(ctx, query, tenantID, merged)
	results := uc.fanOut(ctx, forms, query, filter, merged)

	candidates, err := uc.collect(results, merged)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	terms := queryTerms(query)
	queryDept := uc.rules.routeDepartment(query)
	boosts := make(map[string]float64, len(candidates))
	for i := range candidates {
		formula, boost := formulaScore(candidates[i], terms, queryDept, uc.rules, merged)
		candidates[i].Relevance = formula
		boosts[candidates[i].ID] = boost
	}
	sortCandidates(candidates, func(c domain.RetrievedChunk) float64 { return c.Relevance })

	uc.applyCrossEncoder(ctx, query, candidates, boosts, merged)

	selected := selectDiverse(candidates, merged)
	for i := range selected {
		selected[i].Source = buildSourceReference(selected[i].Metadata)
	}
	return selected, nil
}

// queryForms returns the deduplicated search forms: original, synonym/
// intent expansion, and the optional LLM rewrite. Rewrite failures are
// logged and skipped, never fatal.
func (uc *RetrieveUseCase) queryForms(ctx context.Context, query, tenantID string, cfg domain.RetrievalConfig) []string {
	forms := []string{query}

	if expanded := uc.rules.expandQuery(query); expanded != query {
		forms = append(forms, expanded)
	}

	if uc.rewriter != nil && cfg.RewriteEnabled != nil && *cfg.RewriteEnabled {
		rewritten, err := uc.rewriter.Rewrite(ctx, query, tenantID)
		if err != nil {
			uc.logger.Warn("query_rewrite_skipped", "error", err)
		} else if r := strings.TrimSpace(rewritten); r != "" && !containsForm(forms, r) {
			forms = append(forms, r)
		}
	}
	return forms
}

type searchResult struct {
	signal  string
	primary bool
	chunks  []domain.RetrievedChunk
	err     error
}

// fanOut issues every search concurrently and waits for all of them;
// end-to-end latency is one embedding round trip plus the slowest
// single search, never a sequential walk.
func (uc *RetrieveUseCase) fanOut(
	ctx context.Context,
	forms []string,
	original string,
	filter domain.SearchFilter,
	cfg domain.RetrievalConfig,
) []searchResult {
	type task struct {
		signal  string
		primary bool
		run     func(context.Context) ([]domain.RetrievedChunk, error)
	}

	// The original form feeds both the primary dense search and the
	// auxiliary search; embed it once and share the vector.
	embedOriginal := sync.OnceValues(func() ([]float32, error) {
		return uc.embedder.EmbedQuery(ctx, original)
	})

	var tasks []task
	for i, form := range forms {
		form := form
		embed := func(ctx context.Context) ([]float32, error) {
			return uc.embedder.EmbedQuery(ctx, form)
		}
		if form == original {
			embed = func(context.Context) ([]float32, error) { return embedOriginal() }
		}
		tasks = append(tasks, task{
			signal:  fmt.Sprintf("dense_form_%d", i),
			primary: i == 0,
			run: func(ctx context.Context) ([]domain.RetrievedChunk, error) {
				vector, err := embed(ctx)
				if err != nil {
					return nil, fmt.Errorf("embed query form: %w", err)
				}
				return uc.vectorDB.Search(ctx, vector, cfg.SearchThreshold, cfg.PerSearchLimit, filter)
			},
		})
	}
	tasks = append(tasks, task{
		signal: "fulltext",
		run: func(ctx context.Context) ([]domain.RetrievedChunk, error) {
			chunks, err := uc.vectorDB.SearchLexical(ctx, original, cfg.PerSearchLimit, filter)
			if err != nil {
				return nil, err
			}
			// Full-text rows arrive unscored; pin them at the floor so
			// they survive merging and rank on the formula signals.
			for i := range chunks {
				if chunks[i].Similarity == 0 {
					chunks[i].Similarity = cfg.SimilarityFloor
				}
			}
			return chunks, nil
		},
	})
	tasks = append(tasks, task{
		signal: "auxiliary",
		run: func(ctx context.Context) ([]domain.RetrievedChunk, error) {
			vector, err := embedOriginal()
			if err != nil {
				return nil, fmt.Errorf("embed query: %w", err)
			}
			chunks, err := uc.vectorDB.SearchAuxiliary(ctx, vector, cfg.SearchThreshold, cfg.PerSearchLimit, filter)
			if err != nil {
				return nil, err
			}
			// Auxiliary content never outranks primary content at equal
			// raw similarity.
			for i := range chunks {
				chunks[i].Similarity *= cfg.AuxiliaryMultiplier
			}
			return chunks, nil
		},
	})

	results := make([]searchResult, len(tasks))
	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()
			chunks, err := t.run(ctx)
			results[i] = searchResult{signal: t.signal, primary: t.primary, chunks: chunks, err: err}
		}(i, t)
	}
	wg.Wait()
	return results
}

// collect merges the signal results. Individual signal failures are
// logged and tolerated as long as at least one signal produced rows;
// when every signal failed the retrieval itself is unavailable.
func (uc *RetrieveUseCase) collect(results []searchResult, cfg domain.RetrievalConfig) ([]domain.RetrievedChunk, error) {
	var lists [][]domain.RetrievedChunk
	failed := 0
	var primaryErr error

	for _, res := range results {
		if res.err != nil {
			failed++
			if res.primary {
				primaryErr = res.err
			}
			uc.logger.Warn("search_signal_failed", "signal", res.signal, "error", res.err)
			continue
		}
		lists = append(lists, res.chunks)
	}

	if failed == len(results) {
		err := primaryErr
		if err == nil {
			err = fmt.Errorf("all %d search signals failed", failed)
		}
		return nil, domain.WrapError(domain.ErrUnavailable, "multi-signal search", err)
	}

	merged := mergeCandidates(lists...)
	return applyFloor(merged, cfg.SimilarityFloor), nil
}

// applyCrossEncoder blends cross-encoder scores into the candidate
// ranking under a hard timeout. Any failure leaves the formula ranking
// untouched; the caller never sees a cross-encoder error.
func (uc *RetrieveUseCase) applyCrossEncoder(
	ctx context.Context,
	query string,
	candidates []domain.RetrievedChunk,
	boosts map[string]float64,
	cfg domain.RetrievalConfig,
) {
	if uc.crossEncoder == nil || cfg.CrossEncoderEnabled == nil || !*cfg.CrossEncoderEnabled {
		return
	}

	head := len(candidates)
	if head > cfg.PerSearchLimit {
		head = cfg.PerSearchLimit
	}
	texts := make([]string, head)
	for i := 0; i < head; i++ {
		texts[i] = candidates[i].Text
	}

	ceCtx, cancel := context.WithTimeout(ctx, cfg.RerankTimeout)
	defer cancel()

	scores, err := uc.crossEncoder.Score(ceCtx, query, texts)
	if err != nil || len(scores) != head {
		uc.logger.Warn("cross_encoder_degraded", "error", err, "scores", len(scores), "candidates", head)
		return
	}

	for i := 0; i < head; i++ {
		score := clamp01(scores[i])
		candidates[i].CrossEncoderScore = &score
		candidates[i].Relevance = blendScores(score, candidates[i].Relevance, boosts[candidates[i].ID])
	}
	sortCandidates(candidates, func(c domain.RetrievedChunk) float64 { return c.Relevance })
}

func containsForm(forms []string, form string) bool {
	for _, f := range forms {
		if strings.EqualFold(f, form) {
			return true
		}
	}
	return false
}
