package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"aiscaleup.com/alex-assistant/internal/api"
	"aiscaleup.com/alex-assistant/internal/config"
	"aiscaleup.com/alex-assistant/internal/core"
	"aiscaleup.com/alex-assistant/internal/embed"
	"aiscaleup.com/alex-assistant/internal/ingest"
	"aiscaleup.com/alex-assistant/internal/store"
	"aiscaleup.com/alex-assistant/internal/vector"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flag for offline file ingestion
	ingestDataFlag := flag.Bool("ingest", false, "Ingest the files given as arguments and exit")
	flag.Parse()

	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	namespace, err := dbStore.Namespace()
	if err != nil {
		log.Fatalf("Failed to resolve vector namespace: %v", err)
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	embedder := embed.NewClient(cfg.EmbeddingURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel, httpClient)
	vectors := vector.NewClient(cfg.PineconeHost, cfg.PineconeAPIKey, namespace, httpClient)
	ingestor := ingest.NewIngestor(embedder, vectors)

	// Handle offline ingestion if the flag is set
	if *ingestDataFlag {
		runIngestion(ingestor, flag.Args())
		os.Exit(0)
	}

	// Replies stream for as long as the agent talks, so the chat client gets
	// no overall timeout of its own.
	chatService := core.NewChatService(dbStore, ingestor, cfg.ChatEndpoint, &http.Client{})

	apiHandler := api.NewAPIHandler(dbStore, chatService)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: SSE responses stay open while the reply streams.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}

// runIngestion pushes the given local files into the vector namespace and
// exits, without touching any conversation.
func runIngestion(ingestor *ingest.Ingestor, paths []string) {
	log.Printf("Starting ingestion of %d file(s)...", len(paths))

	files := make([]ingest.File, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", path, err)
		}
		files = append(files, ingest.File{Name: filepath.Base(path), Data: data})
	}

	if err := ingestor.IngestFiles(context.Background(), files, ""); err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}
	log.Println("Ingestion complete. Exiting.")
}
