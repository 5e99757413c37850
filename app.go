package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"mdforge/internal/config"
	"mdforge/internal/filestore"
	"mdforge/internal/job"
	"mdforge/internal/registry"
)

// App wires the service dependencies together for the HTTP handlers.
type App struct {
	db            *sql.DB
	jobs          *job.Manager
	uploads       *filestore.Store
	registry      *registry.Registry
	configManager *config.ConfigManager
	outputDir     string
}

func NewApp(
	db *sql.DB,
	jobs *job.Manager,
	uploads *filestore.Store,
	reg *registry.Registry,
	cm *config.ConfigManager,
	outputDir string,
) *App {
	return &App{
		db:            db,
		jobs:          jobs,
		uploads:       uploads,
		registry:      reg,
		configManager: cm,
		outputDir:     outputDir,
	}
}

// StartJob creates a job for an upload and runs the conversion on a
// background goroutine. The converter name may be empty to let the registry
// pick by extension.
func (app *App) StartJob(uploadID, converter string) (*job.Job, error) {
	up, err := app.jobs.GetUpload(uploadID)
	if err != nil {
		return nil, err
	}
	if converter != "" {
		if _, ok := app.registry.Backend(converter); !ok {
			return nil, fmt.Errorf("unknown converter: %s", converter)
		}
	}

	j, err := app.jobs.Create(uploadID, converterLabel(converter))
	if err != nil {
		return nil, err
	}

	go app.runJob(j.ID, up, converter)
	return j, nil
}

func converterLabel(converter string) string {
	if converter == "" {
		return "auto"
	}
	return converter
}

// runJob drives one conversion to completion. Everything that can go wrong
// lands in the job record; a panic must not take the server down.
func (app *App) runJob(jobID string, up *job.Upload, converter string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: job %s panicked: %v", jobID, r)
			if err := app.jobs.Fail(jobID, fmt.Sprintf("internal error: %v", r)); err != nil {
				log.Printf("Warning: failed to record job failure: %v", err)
			}
		}
	}()

	if err := app.jobs.MarkProcessing(jobID); err != nil {
		log.Printf("Warning: job %s: %v", jobID, err)
		return
	}

	srcPath, err := app.uploads.Path(up.ID, up.Filename)
	if err != nil {
		app.failJob(jobID, err)
		return
	}
	if err := app.jobs.SetProgress(jobID, 10); err != nil {
		log.Printf("Warning: job %s: %v", jobID, err)
	}

	timeout := time.Duration(app.configManager.Get().Render.TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Minute)
	defer cancel()

	outPath, err := app.registry.Convert(ctx, srcPath, app.outputDir, converter)
	if err != nil {
		app.failJob(jobID, err)
		return
	}

	if err := app.jobs.Complete(jobID, outPath); err != nil {
		log.Printf("Warning: job %s: %v", jobID, err)
		return
	}
	log.Printf("Converted %s -> %s", up.Filename, outPath)
}

func (app *App) failJob(jobID string, cause error) {
	log.Printf("Warning: job %s failed: %v", jobID, cause)
	if err := app.jobs.Fail(jobID, cause.Error()); err != nil {
		log.Printf("Warning: failed to record job failure: %v", err)
	}
}
