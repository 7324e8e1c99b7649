package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/extract"
	"github.com/joseph-ayodele/bytelense/internal/labeltext"
	"github.com/joseph-ayodele/bytelense/internal/llm/openai"
)

// structure runs label structuring on a text file, optionally several times,
// to compare model output against the heuristic parser.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: structure <label.txt> [times]")
		os.Exit(2)
	}
	raw, err := os.ReadFile(os.Args[1])
	if err != nil {
		logger.Error("read label text", "path", os.Args[1], "error", err)
		os.Exit(2)
	}
	times := 1
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}

	cfg, err := common.LoadConfig(os.Getenv("BYTELENSE_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	client := openai.NewClient(openai.Config{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		JudgeModel:      cfg.LLM.JudgeModel,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		Timeout:         cfg.LLM.Timeout,
		LenientOptional: true,
	}, logger)
	if !client.Configured() {
		logger.Warn("OPENAI_API_KEY not set, using the heuristic parser only")
	}
	structurer := extract.NewChainStructurer(client, labeltext.NewStructurer(logger), cfg.Pipeline.StructureTimeout, logger)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for i := 1; i <= times; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		start := time.Now()
		rec, conf, missing, err := structurer.Extract(ctx, string(raw))
		cancel()
		if err != nil {
			logger.Error("structure.run.error", "iter", i, "err", err)
			continue
		}
		logger.Info("structure.run.ok", "iter", i, "confidence", conf, "missing", missing, "elapsed_ms", time.Since(start).Milliseconds())
		if err := enc.Encode(rec); err != nil {
			logger.Error("encode", "error", err)
		}
		if i < times {
			time.Sleep(750 * time.Millisecond)
		}
	}
}
