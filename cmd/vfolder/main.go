package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"vfolder/internal/api"
	"vfolder/internal/config"
	"vfolder/internal/folder"
	"vfolder/internal/fs"
	"vfolder/internal/logging"
	"vfolder/internal/resolver"
	"vfolder/internal/session"
	"vfolder/internal/state"
)

var (
	logger = logging.GetLogger()
)

func main() {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	if level, ok := logging.ParseLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	} else {
		logger.Warn("Unknown log level %q, keeping %s", cfg.LogLevel, logger.Level())
	}

	logger.Info("Starting vfolder...")
	logger.Debug("Source path: %s", cfg.SourceDir)
	logger.Debug("State file: %s", cfg.StateFile)
	logger.Debug("Mount point: %s", cfg.MountPoint)
	logger.Debug("Listen address: %s", cfg.Listen)

	logger.Info("Initializing state manager...")
	stateManager, err := state.NewManager(cfg.StateFile, cfg.BackupCount)
	if err != nil {
		logger.Error("Failed to initialize state manager: %v", err)
		os.Exit(1)
	}

	if cfg.Print {
		forest, err := stateManager.LoadForest()
		if err != nil {
			logger.Error("Failed to load state: %v", err)
			os.Exit(1)
		}
		if err := printForest(os.Stdout, forest); err != nil {
			logger.Error("Failed to print forest: %v", err)
			os.Exit(1)
		}
		return
	}

	res, err := resolver.New(filepath.Clean(cfg.SourceDir))
	if err != nil {
		logger.Error("Invalid source directory: %v", err)
		os.Exit(1)
	}

	sess, err := session.Open(stateManager, res, cfg.AutoSave)
	if err != nil {
		logger.Error("Failed to load state: %v", err)
		os.Exit(1)
	}

	logger.Debug("Setting up signal handlers...")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var vfs *fs.VFolderFS
	cleanMount := filepath.Clean(cfg.MountPoint)
	if cfg.MountPoint != "" {
		logger.Info("Creating virtual filesystem...")
		vfs, err = fs.NewVFolderFS(sess, cfg.AllowOther)
		if err != nil {
			logger.Error("Failed to create virtual filesystem: %v", err)
			os.Exit(1)
		}
		if err := vfs.Mount(cleanMount); err != nil {
			logger.Error("Mount failed: %v", err)
			os.Exit(1)
		}
		logger.Info("Filesystem mounted at %s", cleanMount)
	}

	var httpServer *http.Server
	if cfg.Listen != "" {
		httpServer = &http.Server{
			Addr:              cfg.Listen,
			Handler:           api.NewServer(sess, cfg.APIKey),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP API listening on %s", cfg.Listen)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error: %v", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down...")

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error: %v", err)
		}
		cancel()
	}

	if vfs != nil {
		if err := vfs.Unmount(cleanMount); err != nil {
			logger.Error("Unmount error: %v", err)
		}
	}

	if sess.Dirty() {
		if err := sess.Save(); err != nil {
			logger.Error("Failed to save state on shutdown: %v", err)
			os.Exit(1)
		}
	}
	logger.Info("Clean shutdown complete")
}

// printForest writes every root as an indented outline. Linked resources
// follow their folder name.
func printForest(w io.Writer, f *folder.Forest) error {
	seqs, err := f.Sequences()
	if err != nil {
		return err
	}
	for _, seq := range seqs {
		for _, n := range seq {
			line := strings.Repeat("  ", n.Depth+1) + n.Name
			if n.Path != "" {
				line += " -> " + n.Path
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}
