package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/triplehelix/internal/api"
	"github.com/example/triplehelix/internal/config"
	"github.com/example/triplehelix/internal/content"
	"github.com/example/triplehelix/internal/database"
	"github.com/example/triplehelix/internal/importer"
	"github.com/example/triplehelix/internal/localstore"
	"github.com/example/triplehelix/internal/persistence"
)

func main() {
	importPath := flag.String("import", "", "import stitch content from an .xlsx or .csv file and exit")
	flag.Parse()

	cfg := config.Load()

	if err := database.Connect(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if *importPath != "" {
		runImport(*importPath)
		return
	}

	local, err := localstore.Open(cfg.LocalStorePath)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer local.Close()

	queue := persistence.NewRetryQueue()
	gateway := persistence.NewGateway(
		persistence.DefaultStrategies(cfg.WriteAPIURL, cfg.WriteAPIToken),
		queue,
		local,
		database.NewStateSnapshotRepository(),
	)

	drainer := persistence.NewDrainer(gateway, cfg.DrainInterval)
	drainer.Start()

	var fetcher content.Fetcher
	if cfg.ContentAPIURL != "" {
		fetcher = content.NewClient(cfg.ContentAPIURL)
	}
	buffer := content.NewBuffer(fetcher)

	server := api.NewServer(buffer, gateway, local)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)

		drainer.Stop()
		if err := local.PromoteSessionToDurable(); err != nil {
			log.Printf("Failed to promote session mirror: %v", err)
		}
		close(done)
	}()

	go func() {
		log.Printf("Listening on %s", cfg.ListenAddr)
		if err := server.Run(cfg.ListenAddr); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Stopped")
}

func runImport(path string) {
	importCfg := importer.DefaultImportConfig()
	importCfg.FilePath = path

	result, err := importer.ImportStitches(context.Background(), importCfg)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	log.Printf("Imported %d stitches (%d questions) from %d rows, %d skipped",
		result.StitchesSaved, result.Questions, result.TotalProcessed, result.Skipped)
	for _, msg := range result.Errors {
		log.Printf("Import warning: %s", msg)
	}
}
