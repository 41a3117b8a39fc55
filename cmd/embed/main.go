// Package main embeds texts through the provider registry and prints the vectors.
// Usage: opsglue-embed [--output json] [--tier N --batch] "text" ["text" ...]
//
// Without arguments, one text per line is read from stdin.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"opsglue/internal/config"
	"opsglue/internal/embedding"
	"opsglue/internal/observability/logging"
)

// Output is the JSON output format.
type Output struct {
	Provider   string      `json:"provider"`
	Success    bool        `json:"success"`
	Count      int         `json:"count"`
	Dimensions int         `json:"dimensions"`
	Embeddings [][]float32 `json:"embeddings"`
}

func main() {
	var (
		outputFormat string
		tier         int
		batch        bool
		timeout      time.Duration
	)
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.IntVar(&tier, "tier", 0, "Use only this provider tier (1=primary, 2=secondary, 3=fallback)")
	flag.BoolVar(&batch, "batch", false, "Embed in EMBEDDING_BATCH_SIZE chunks; failed items become zero vectors (requires --tier)")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "Overall timeout")
	flag.Parse()

	logger := logging.New(logging.Options{Writer: os.Stderr})
	slog.SetDefault(logger)

	texts := flag.Args()
	if len(texts) == 0 {
		var err error
		texts, err = readLines(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read stdin: %v\n", err)
			os.Exit(1)
		}
	}
	if len(texts) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one text is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: opsglue-embed [--output json] [--tier N --batch] \"text\" [\"text\" ...]")
		os.Exit(1)
	}
	if batch && tier == 0 {
		fmt.Fprintln(os.Stderr, "Error: --batch requires --tier")
		os.Exit(1)
	}

	cfg, err := config.LoadEmbeddingConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	registry := embedding.NewRegistryFromConfig(cfg, embedding.WithLogger(logger))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var out Output
	if tier == 0 {
		res := registry.GetEmbeddings(ctx, texts)
		out = Output{Provider: res.Provider, Success: res.Success, Embeddings: res.Embeddings}
	} else {
		p, ok := registry.Provider(embedding.Tier(tier))
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: no provider registered at tier %d\n", tier)
			os.Exit(1)
		}
		out = Output{Provider: p.Name(), Success: true}
		if batch {
			out.Embeddings = embedding.BatchGetEmbeddings(ctx, p, texts, cfg.BatchSize)
		} else if out.Embeddings, err = p.GetEmbeddings(ctx, texts); err != nil {
			logger.Error("embedding failed", slog.String("provider", p.Name()), slog.Any("error", err))
			out.Success = false
		}
	}
	out.Count = len(out.Embeddings)
	if out.Count > 0 {
		out.Dimensions = len(out.Embeddings[0])
	}

	if outputFormat == "json" {
		outputJSON(out)
	} else {
		outputText(texts, out)
	}
	if !out.Success {
		os.Exit(2)
	}
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func outputText(texts []string, out Output) {
	if !out.Success {
		fmt.Println("All embedding providers failed.")
		return
	}
	fmt.Printf("Provider: %s\n", out.Provider)
	fmt.Printf("Embeddings: %d x %d\n\n", out.Count, out.Dimensions)
	for i, vec := range out.Embeddings {
		preview := vec
		if len(preview) > 5 {
			preview = preview[:5]
		}
		fmt.Printf("%d. %q\n   %v...\n", i+1, texts[i], preview)
	}
}

func outputJSON(out Output) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
}
