package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/judgenot0/watchdog/cmd"
	"github.com/judgenot0/watchdog/config"
	"github.com/judgenot0/watchdog/handlers"
	"github.com/judgenot0/watchdog/queue"
	"github.com/judgenot0/watchdog/scheduler"
	"github.com/judgenot0/watchdog/structs"
	"github.com/judgenot0/watchdog/watchdog"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == watchdog.ChildMode {
		watchdog.ChildMain(os.Args[2:])
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		serve()
		return
	}
	runOnce()
}

// runOnce is the inner execution primitive: one JSON job in, one JSON
// verdict out. Diagnostics for jobs that never start go to stdout and the
// process exits non-zero; once the target has forked, the verdict is the
// only thing written.
func runOnce() {
	var data []byte
	var err error
	if len(os.Args) == 2 {
		data, err = os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Printf("Failed to open file: %v\n", err)
			os.Exit(1)
		}
	} else {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Printf("Failed to read stdin: %v\n", err)
			os.Exit(1)
		}
	}

	job, err := structs.ParseJob(data)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	verdict, err := watchdog.Run(job, watchdog.Options{})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	out, err := verdict.Render()
	if err != nil {
		fmt.Printf("Failed to encode verdict: %v\n", err)
		os.Exit(1)
	}
	_, _ = os.Stdout.Write(out)
}

// serve runs the daemon: jobs in from RabbitMQ and HTTP, verdicts out to
// the control server.
func serve() {
	config := config.GetConfig()

	queueManager := queue.NewQueue()
	if err := queueManager.InitQueue(config); err != nil {
		log.Fatalf("Failed to initialize queue: %v", err)
	}

	handler := handlers.NewHandler(config)

	scheduler := scheduler.NewScheduler(handler)
	scheduler.With(config.WorkerCount)

	server := cmd.NewServer(config, queueManager, scheduler)
	server.RegisterMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("[*] Waiting for jobs. To exit press CTRL+C")
		if err := queueManager.StartConsume(ctx, scheduler); err != nil {
			log.Printf("Queue consumer stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("[*] Server Running at %s", config.HttpPort)
		if err := server.Listen(ctx, config.HttpPort); err != nil {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	<-sigChan
	log.Println("\n[*] Shutting down gracefully...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	shutdownDone := make(chan struct{})
	go func() {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		log.Println("[*] Server shut down successfully")
	case <-shutdownCtx.Done():
		log.Println("[*] Shutdown timeout exceeded, forcing exit")
	}

	if err := queueManager.Close(); err != nil {
		log.Printf("Error closing queue: %v", err)
	}

	wg.Wait()
	log.Println("[*] Shutdown complete")
}
