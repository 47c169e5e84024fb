package main

import (
	"context"
	"embed"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gradegrid/adapters/excel"
	"gradegrid/internal/config"
	"gradegrid/internal/gateway"
	"gradegrid/internal/shell"
	"gradegrid/internal/staging"
	"gradegrid/ui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

//go:embed ui/templates/* ui/static/*
var embeddedFiles embed.FS

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(appConfig.Server.GinMode)

	lock := shell.NewInstanceLock(appConfig.LockPath())
	if err := lock.Acquire(); err != nil {
		if errors.Is(err, shell.ErrAlreadyRunning) {
			// bring the running instance forward instead of starting another
			log.Printf("Already running, opening %s", appConfig.URL())
			if err := shell.NewBrowserOpener().Open(appConfig.URL()); err != nil {
				log.Fatalf("Failed to open window: %v", err)
			}
			return
		}
		log.Fatalf("Failed to acquire instance lock %s: %v", lock.Path(), err)
	}

	err = run(appConfig)
	if releaseErr := lock.Release(); releaseErr != nil {
		log.Printf("Failed to release instance lock: %v", releaseErr)
	}
	if err != nil {
		log.Fatalf("gradegrid stopped: %v", err)
	}
}

// run serves the converter and drives the desktop window until a signal
// arrives or the last window closes
func run(appConfig *config.Config) error {
	stager := staging.NewStager(&staging.StorageConfig{
		UploadsDir:   appConfig.Paths.UploadsDir,
		DownloadsDir: appConfig.Paths.DownloadsDir,
	})

	excelConfig := excel.DefaultExcelConfig()
	excelConfig.SheetName = appConfig.Export.SheetName

	pipeline := gateway.NewService(
		stager,
		excel.NewDataReader(excelConfig),
		excel.NewDataWriter(excelConfig),
		gateway.Config{
			DownloadName: appConfig.Export.DownloadName,
			PreviewRows:  appConfig.Export.PreviewRows,
		},
	)

	lifecycle := shell.NewLifecycle(appConfig.Shell.QuitOnLastWindow, appConfig.Shell.WindowGrace.Duration)

	server, err := ui.NewServer(embeddedFiles, pipeline, lifecycle, ui.Config{
		Addr:           appConfig.Addr(),
		MaxUploadBytes: appConfig.MaxUploadBytes(),
	})
	if err != nil {
		return err
	}

	desktop := shell.New(shell.NewBrowserOpener(), lifecycle, shell.Config{
		OpenWindow: appConfig.Shell.OpenWindow,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Run)
	g.Go(func() error {
		return desktop.Run(gctx, appConfig.URL())
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Printf("🚀 Starting gradegrid on %s (data in %s)", appConfig.URL(), appConfig.Paths.DataDir)
	if err := g.Wait(); err != nil && !errors.Is(err, shell.ErrQuit) {
		return err
	}
	log.Println("gradegrid stopped")
	return nil
}
