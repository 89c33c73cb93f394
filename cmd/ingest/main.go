// Command ingest builds or extends the knowledge index from URLs or local
// files. It talks to MySQL only for the source registry; Redis and RabbitMQ
// are not needed for ingestion.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"internationally/internal/ai"
	"internationally/internal/chunker"
	"internationally/internal/config"
	"internationally/internal/ingest"
	"internationally/internal/model"
	mysqlClient "internationally/internal/platform/mysql"
	"internationally/internal/repository"
	"internationally/internal/vectorstore"
)

func main() {
	var (
		urlFlag   = flag.String("url", "", "single URL to ingest")
		urlsFlag  = flag.String("urls", "", "file with one URL per line")
		fileFlag  = flag.String("file", "", "local text, markdown or pdf file to ingest")
		resetFlag = flag.Bool("reset", false, "clear the index and source registry before ingesting")
	)
	flag.Parse()

	if *urlFlag == "" && *urlsFlag == "" && *fileFlag == "" && !*resetFlag {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		log.Fatalf("connect mysql failed: %v", err)
	}
	if err := mysqlDB.AutoMigrate(&model.KnowledgeSource{}); err != nil {
		log.Fatalf("auto migrate failed: %v", err)
	}
	sourceRepo := repository.NewSourceRepository(mysqlDB)

	index := vectorstore.New(cfg.Index.Path, cfg.Index.Dimension)
	if err := index.Load(); err != nil {
		if errors.Is(err, vectorstore.ErrIndexCorrupted) && *resetFlag {
			log.Printf("index is corrupted, resetting as requested")
		} else {
			log.Fatalf("load index failed: %v", err)
		}
	}

	aiClient := ai.NewOpenAIClient(ai.OpenAIOptions{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Dimension:      cfg.Index.Dimension,
	})

	pipeline := ingest.NewPipeline(
		ingest.NewFetcher(),
		chunker.New(cfg.Index.ChunkWords, cfg.Index.OverlapWords),
		aiClient,
		index,
		sourceRepo,
		log.Default(),
	)

	if *resetFlag {
		if err := pipeline.Reset(); err != nil {
			log.Fatalf("reset index failed: %v", err)
		}
		log.Printf("index and source registry cleared")
	}

	var urls []string
	if *urlFlag != "" {
		urls = append(urls, *urlFlag)
	}
	if *urlsFlag != "" {
		fromFile, err := readURLList(*urlsFlag)
		if err != nil {
			log.Fatalf("read url list failed: %v", err)
		}
		urls = append(urls, fromFile...)
	}

	failed := 0
	for _, url := range urls {
		result, err := pipeline.IngestURL(ctx, url)
		if err != nil {
			log.Printf("ingest %s failed: %v", url, err)
			failed++
			continue
		}
		fmt.Printf("ingested %s: %d chunks\n", result.URL, result.ChunkCount)
	}

	if *fileFlag != "" {
		result, err := pipeline.IngestFile(ctx, *fileFlag)
		if err != nil {
			log.Fatalf("ingest file failed: %v", err)
		}
		fmt.Printf("ingested %s: %d chunks\n", result.URL, result.ChunkCount)
	}

	fmt.Printf("index now holds %d entries\n", index.Len())
	if failed > 0 {
		os.Exit(1)
	}
}

func readURLList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}
