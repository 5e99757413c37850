package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"mdforge/internal/config"
	"mdforge/internal/convert"
	"mdforge/internal/db"
	"mdforge/internal/engine"
	"mdforge/internal/filestore"
	"mdforge/internal/job"
	"mdforge/internal/middleware"
	"mdforge/internal/registry"
	"mdforge/internal/render"
)

func main() {
	// Ensure data directory exists
	if err := os.MkdirAll("./data", 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// 1. Load config
	cm := config.NewConfigManager("./data/config.json")
	if err := cm.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := cm.Get()

	// 2. Initialize database
	database, err := db.InitDB(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 3. Storage
	uploads, err := filestore.New(cfg.Storage.UploadDir)
	if err != nil {
		log.Fatalf("Failed to initialize upload store: %v", err)
	}
	if err := os.MkdirAll(cfg.Storage.OutputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	// 4. Converter backends. The reconstruction engine registers first so it
	// takes priority for the formats it shares with the fallback backends.
	renderer := newRenderer(cfg)

	reg := registry.New()
	reg.Register(engine.New(renderer))
	reg.Register(convert.NewFitzBackend())
	reg.Register(convert.NewHTMLBackend())

	// 5. Create App and register HTTP API handlers
	app := NewApp(database, job.NewManager(database), uploads, reg, cm, cfg.Storage.OutputDir)

	rl := middleware.NewRateLimiter(120, time.Minute)
	defer rl.Stop()
	wrap := middleware.Chain(
		middleware.SecurityHeaders(),
		middleware.CORS(),
		middleware.RequestID(),
		rl.Limit(),
	)

	http.HandleFunc("/api/uploads", wrap(handleUpload(app)))
	http.HandleFunc("/api/jobs", wrap(handleJobs(app)))
	http.HandleFunc("/api/jobs/", wrap(handleJobByID(app)))
	http.HandleFunc("/api/converters", wrap(handleConverters(app)))
	http.HandleFunc("/api/config", wrap(handleConfig(app)))

	// 6. Start HTTP server
	fmt.Printf("mdforge starting on http://%s\n", cfg.Server.Addr)
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, nil))
}

// newRenderer builds the chart renderer from the configured timeout and
// resolution.
func newRenderer(cfg *config.Config) *render.Soffice {
	renderer := render.NewSoffice()
	renderer.Timeout = time.Duration(cfg.Render.TimeoutSeconds) * time.Second
	renderer.DPI = float64(cfg.Render.DPI)
	return renderer
}
