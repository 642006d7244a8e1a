//go:build linux

package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/brickingsoft/couring"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) != 2 {
		slog.Error("usage: couring <port>")
		os.Exit(2)
	}
	port, portErr := strconv.Atoi(os.Args[1])
	if portErr != nil {
		slog.Error("invalid port", "port", os.Args[1])
		os.Exit(2)
	}

	options, optionsErr := optionsFromEnv()
	if optionsErr != nil {
		slog.Error("invalid configuration", "error", optionsErr)
		os.Exit(1)
	}

	server, serverErr := couring.NewServer(port, options...)
	if serverErr != nil {
		slog.Error("server setup failed", "error", serverErr)
		os.Exit(1)
	}

	slog.Info("couring listening", "port", port)
	if err := server.ListenAndServe(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// optionsFromEnv layers optional environment overrides under the positional
// port argument: COURING_WORKERS, COURING_ROOT, COURING_RING_ENTRIES,
// COURING_BUFFERS, COURING_BUFFER_SIZE, COURING_BACKLOG.
func optionsFromEnv() ([]couring.Option, error) {
	var options []couring.Option
	if v := os.Getenv("COURING_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		options = append(options, couring.WithWorkers(n))
	}
	if v := os.Getenv("COURING_ROOT"); v != "" {
		options = append(options, couring.WithRoot(v))
	}
	if v := os.Getenv("COURING_RING_ENTRIES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, err
		}
		options = append(options, couring.WithRingEntries(uint32(n)))
	}
	size, bufferSize := couring.DefaultBufferRingSize, couring.DefaultBufferSize
	override := false
	if v := os.Getenv("COURING_BUFFERS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, err
		}
		size = uint32(n)
		override = true
	}
	if v := os.Getenv("COURING_BUFFER_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		bufferSize = n
		override = true
	}
	if override {
		options = append(options, couring.WithBufferRing(size, bufferSize))
	}
	if v := os.Getenv("COURING_BACKLOG"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		options = append(options, couring.WithBacklog(n))
	}
	return options, nil
}
