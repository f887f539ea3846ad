package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"supplyrag/config"
	"supplyrag/internal/adapter/index"
	"supplyrag/internal/adapter/store"
)

func main() {
	rootDir := flag.String("dir", ".", "Project root containing supplyrag.yaml")
	topK := flag.Int("k", 10, "Neighbours compared per query")
	queries := flag.Int("n", 200, "Number of stored vectors used as queries")
	efList := flag.String("ef", "16,32,64,128,256", "Comma-separated ef_search values to test")
	flag.Parse()

	cfg, err := config.LoadFromDir(*rootDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	snaps := store.NewSnapshots(config.Resolve(*rootDir, cfg.Paths.IndexDir))
	id, dir, err := snaps.Current()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}

	efs, err := parseInts(*efList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -ef: %v\n", err)
		os.Exit(1)
	}

	ann, err := index.Load(filepath.Join(dir, store.IndexFile), 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading index: %v\n", err)
		os.Exit(1)
	}

	vectors := make([][]float32, ann.Len())
	for row := range vectors {
		v, ok := ann.Vector(row)
		if !ok {
			fmt.Fprintf(os.Stderr, "Index is missing row %d\n", row)
			os.Exit(1)
		}
		vectors[row] = v
	}
	exact, err := index.NewFlat(vectors)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building exact index: %v\n", err)
		os.Exit(1)
	}

	sample := sampleRows(len(vectors), *queries)

	fmt.Println("HNSW RECALL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Snapshot:  %s\n", id)
	fmt.Printf("Vectors:   %d (dim %d)\n", ann.Len(), ann.Dim())
	fmt.Printf("Queries:   %d, k=%d\n", len(sample), *topK)
	fmt.Println(strings.Repeat("-", 70))

	truth := make([]map[int]bool, len(sample))
	var exactTime time.Duration
	for i, row := range sample {
		start := time.Now()
		hits, err := exact.Search(vectors[row], *topK)
		exactTime += time.Since(start)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Exact search error: %v\n", err)
			os.Exit(1)
		}
		truth[i] = make(map[int]bool, len(hits))
		for _, h := range hits {
			truth[i][h.Row] = true
		}
	}
	fmt.Printf("%-10s %10s %14s\n", "ef_search", "recall@k", "mean latency")
	fmt.Printf("%-10s %10.4f %14s\n", "exact", 1.0, mean(exactTime, len(sample)))

	for _, ef := range efs {
		ann.SetEfSearch(ef)
		var found, total int
		var annTime time.Duration
		for i, row := range sample {
			start := time.Now()
			hits, err := ann.Search(vectors[row], *topK)
			annTime += time.Since(start)
			if err != nil {
				fmt.Fprintf(os.Stderr, "HNSW search error: %v\n", err)
				os.Exit(1)
			}
			for _, h := range hits {
				if truth[i][h.Row] {
					found++
				}
			}
			total += len(truth[i])
		}
		recall := 0.0
		if total > 0 {
			recall = float64(found) / float64(total)
		}
		fmt.Printf("%-10d %10.4f %14s\n", ef, recall, mean(annTime, len(sample)))
	}
}

// sampleRows spreads n query rows evenly over the index.
func sampleRows(size, n int) []int {
	if n <= 0 || n > size {
		n = size
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i * size / n
	}
	return rows
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%q is not a positive integer", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func mean(d time.Duration, n int) time.Duration {
	if n == 0 {
		return 0
	}
	return (d / time.Duration(n)).Round(time.Microsecond)
}
