package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"supplyrag/internal/adapter/cache"
	"supplyrag/internal/adapter/index"
	"supplyrag/internal/adapter/retriever"
	"supplyrag/internal/adapter/store"
	"supplyrag/internal/port"
	"supplyrag/internal/usecase"
)

var (
	queryText     string
	queryFile     string
	queryTopK     int
	queryTopM     int
	queryJSON     bool
	queryNoRerank bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve and rerank passages for a query",
	Long: `Embed the query, search the current snapshot for the top_k nearest chunks
and rerank them with the relevance model, keeping top_m.

With --file, queries are read one per line ("-" for stdin) and answered by
the same process, so repeated queries reuse their cached embeddings.

Examples:
  supplyrag query -q "contract manufacturers"
  supplyrag query -q "cloud providers" --top-m 5 --json
  supplyrag query --file questions.txt --json`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query")
	queryCmd.Flags().StringVarP(&queryFile, "file", "f", "", "file with one query per line, - for stdin")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "candidates to retrieve (default from config)")
	queryCmd.Flags().IntVarP(&queryTopM, "top-m", "m", 0, "candidates to keep after reranking (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryNoRerank, "no-rerank", false, "skip the relevance model")
	queryCmd.MarkFlagsOneRequired("query", "file")
	queryCmd.MarkFlagsMutuallyExclusive("query", "file")
}

// queryPipeline is an opened snapshot with the retrieval stack around it.
type queryPipeline struct {
	retrieve *usecase.RetrieveUseCase
	corpus   *index.EmbeddedCorpus
	closers  []func() error
}

func (p *queryPipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

func openQueryPipeline(ctx context.Context, topK, topM int, rerank bool) (*queryPipeline, error) {
	cfg := GetConfig()
	if topK <= 0 {
		topK = cfg.Retrieve.TopK
	}
	if topM <= 0 {
		topM = cfg.Rerank.TopM
	}
	if topK <= 0 {
		return nil, fmt.Errorf("retrieve.top_k must be > 0")
	}
	if topM <= 0 {
		topM = topK
	}

	_, dir, err := store.NewSnapshots(path(cfg.Paths.IndexDir)).Current()
	if err != nil {
		return nil, err
	}
	corpus, err := index.OpenWithEfSearch(dir, cfg.Index.EfSearch)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	p := &queryPipeline{corpus: corpus, closers: []func() error{corpus.Close}}

	embedder, closer, err := newEmbedder(ctx, cfg, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	if closer != nil {
		p.closers = append(p.closers, closer.Close)
	}

	vc := cache.NewVectorCache(cfg.Retrieve.CacheSize, time.Duration(cfg.Retrieve.CacheTTLSeconds)*time.Second)
	dense, err := retriever.NewDenseRetriever(embedder, corpus, vc, logger)
	if err != nil {
		p.Close()
		return nil, err
	}

	var rr port.Reranker
	if rerank {
		r, err := newReranker(cfg, logger)
		if err != nil {
			p.Close()
			return nil, err
		}
		rr = r
	}

	p.retrieve = usecase.NewRetrieveUseCase(dense, rr, topK, topM, logger)
	return p, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	queries := []string{queryText}
	if queryFile != "" {
		var err error
		if queries, err = loadQueries(queryFile); err != nil {
			return err
		}
	}

	p, err := openQueryPipeline(cmd.Context(), queryTopK, queryTopM, !queryNoRerank)
	if err != nil {
		return err
	}
	defer p.Close()

	batch, err := p.retrieve.RetrieveAll(cmd.Context(), queries)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if queryFile == "" {
			return enc.Encode(batch[0].Results)
		}
		return enc.Encode(batch)
	}

	for _, qr := range batch {
		printResults(qr, p.corpus.Manifest().SnapshotID)
	}
	return nil
}

func loadQueries(name string) ([]string, error) {
	in := os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open query file: %w", err)
		}
		defer f.Close()
		in = f
	}
	queries, err := usecase.ReadQueries(in)
	if err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries in %s", name)
	}
	return queries, nil
}

func printResults(qr usecase.QueryResults, snapshotID string) {
	if len(qr.Results) == 0 {
		fmt.Printf("No results found for: %q\n\n", qr.Query)
		return
	}

	fmt.Printf("Found %d results for: %q (snapshot %s)\n\n", len(qr.Results), qr.Query, snapshotID)
	for _, r := range qr.Results {
		fmt.Printf("─── [%d] %s #%d (retrieval: %.4f", r.Rank, r.DocID, r.Seq, r.RetrievalScore)
		if r.RerankScore != nil {
			fmt.Printf(", rerank: %.4f", *r.RerankScore)
		}
		fmt.Printf(") ───\n")
		fmt.Printf("%s\n\n", preview(r.Text, 400))
	}
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
