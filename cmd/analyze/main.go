// Command analyze runs the compliance core's run_analysis operation over a
// single PDF file and prints the five requirement judgments as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brunobiangulo/compliance"
)

func main() {
	pdfPath := flag.String("pdf", "", "Path to the contract PDF to analyze")
	model := flag.String("model", "llama3.1:8b", "Model name for the LLM endpoint")
	baseURL := flag.String("base-url", "http://localhost:11434", "OpenAI-compatible base URL")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall job deadline")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if *pdfPath == "" {
		slog.Error("missing required -pdf flag")
		os.Exit(1)
	}

	cfg := compliance.DefaultConfig()
	cfg.LLM.Model = *model
	cfg.LLM.BaseURL = *baseURL
	if v := os.Getenv("COMPLIANCE_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	engine, err := compliance.New(cfg)
	if err != nil {
		slog.Error("constructing engine", "error", err)
		os.Exit(1)
	}

	pdfBytes, err := os.ReadFile(*pdfPath)
	if err != nil {
		slog.Error("reading PDF", "path", *pdfPath, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := engine.RunAnalysis(ctx, pdfBytes, *pdfPath)
	if err != nil {
		slog.Error("run_analysis failed", "error", err)
		os.Exit(1)
	}

	out := struct {
		Filename string                      `json:"filename"`
		Pages    int                         `json:"pages"`
		NeedsOCR bool                        `json:"needs_ocr"`
		Results  []compliance.AnalysisResult `json:"results"`
	}{
		Filename: result.Document.Filename,
		Pages:    result.Document.PageCount(),
		NeedsOCR: result.Document.Metadata.NeedsOCR,
		Results:  result.Results,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
