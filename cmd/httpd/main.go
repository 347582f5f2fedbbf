// Command httpd serves a directory over HTTP/1.0 with a fixed pool of workers.
//
//	httpd [-c config.yaml] [-p port] [-w workers] [-t seconds] [-r root] [-l logfile] [-v level] [host]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Brownie44l1/statichttpd/internal/config"
	"github.com/Brownie44l1/statichttpd/internal/logger"
	"github.com/Brownie44l1/statichttpd/internal/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "httpd:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	log, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Error("cannot start server", logger.F("error", err.Error()))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
	defer signal.Stop(sigCh)

	return serve(srv, log, sigCh)
}

// serve runs srv until it fails or a signal arrives. A server closed by a
// signal before it started listening is a clean exit too.
func serve(srv *server.Server, log logger.Logger, sigCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ServeForever()
	}()

	var err error
	select {
	case sig := <-sigCh:
		log.Info("caught signal", logger.F("signal", sig.String()))
		if cerr := srv.Close(); cerr != nil {
			log.Warn("close listener", logger.F("error", cerr.Error()))
		}
		err = <-errCh
	case err = <-errCh:
		srv.Close()
	}

	if errors.Is(err, server.ErrServerClosed) {
		return nil
	}
	return err
}

// loadConfig layers command line flags over the config file and the
// environment. Only flags that were actually given override.
func loadConfig(args []string, output io.Writer) (*config.Config, error) {
	fs := flag.NewFlagSet("httpd", flag.ContinueOnError)
	fs.SetOutput(output)

	configPath := fs.String("c", "", "path to YAML config file")
	port := fs.Int("p", 0, "port to listen on")
	workers := fs.Int("w", 0, "number of workers")
	timeout := fs.Float64("t", 0, "socket timeout in seconds")
	root := fs.String("r", "", "document root")
	logFile := fs.String("l", "", "log file (default stdout)")
	level := fs.String("v", "", "log level: debug, info, warn, error")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: httpd [flags] [host]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args()[1:])
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	if fs.NArg() == 1 {
		cfg.Server.Host = fs.Arg(0)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p":
			cfg.Server.Port = *port
		case "w":
			cfg.Server.Workers = *workers
		case "t":
			cfg.Server.Timeout = time.Duration(*timeout * float64(time.Second))
		case "r":
			cfg.Server.Root = *root
		case "l":
			cfg.Log.File = *logFile
		case "v":
			cfg.Log.Level = *level
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger opens the configured log destination. The returned func
// closes the log file, if one was opened.
func newLogger(cfg config.LogConfig) (logger.Logger, func(), error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	if cfg.File == "" {
		return logger.New(os.Stdout, level), func() {}, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return logger.New(f, level), func() { f.Close() }, nil
}
