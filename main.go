// Package main is the crate command line interface: it scans a music
// library into the catalog database and answers simple queries against it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/crate/internal/config"
	"github.com/llehouerou/crate/internal/library"
)

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	subtree := flag.String("path", "", "Restrict add to a directory under the library root")
	flag.Usage = usage
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	lib, err := library.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open catalog database")
	}
	defer lib.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch flag.Arg(0) {
	case "add":
		err = runScan(ctx, func(events chan<- library.Event) error {
			return lib.Add(ctx, events, *subtree)
		})
	case "update":
		err = runScan(ctx, func(events chan<- library.Event) error {
			return lib.Update(ctx, events)
		})
	case "art":
		err = runArt(lib, flag.Arg(1))
	case "stats":
		err = runStats(lib)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: crate [flags] <command>

Commands:
  add       Catalog files not yet known, optionally limited with -path
  update    Full reconciliation: moves, deletions, changed files, then add
  art ID    Regenerate and print info for an album's cover derivative
  stats     Print catalog totals

Flags:
`)
	flag.PrintDefaults()
}

// runScan drives a reconciliation run, draining its event stream into the
// logger. The engine closes the channel when it finishes.
func runScan(ctx context.Context, scan func(chan<- library.Event) error) error {
	events := make(chan library.Event)
	done := make(chan error, 1)
	go func() {
		done <- scan(events)
	}()

	for ev := range events {
		switch ev.Level {
		case library.LevelDebug:
			log.Debug().Msg(ev.Message)
		case library.LevelError:
			log.Error().Msg(ev.Message)
		case library.LevelSuccess:
			log.Info().Str("status", "done").Msg(ev.Message)
		default:
			log.Info().Msg(ev.Message)
		}
	}
	if err := <-done; err != nil {
		return err
	}
	return ctx.Err()
}

func runArt(lib *library.Library, arg string) error {
	var albumID int64
	if _, err := fmt.Sscan(arg, &albumID); err != nil {
		return fmt.Errorf("art: album id required")
	}
	data, mime, err := lib.ArtDerivative(albumID, library.ArtSizeAlbum)
	if err != nil {
		return err
	}
	if data == nil {
		log.Info().Int64("album", albumID).Msg("No cover art found")
		return nil
	}
	log.Info().
		Int64("album", albumID).
		Str("mime", mime).
		Str("size", humanize.Bytes(uint64(len(data)))).
		Msg("Cover derivative ready")
	return nil
}

func runStats(lib *library.Library) error {
	artists, albums, songs, err := lib.Counts()
	if err != nil {
		return err
	}
	log.Info().
		Int("artists", artists).
		Int("albums", albums).
		Int("songs", songs).
		Msg("Catalog totals")
	return nil
}
