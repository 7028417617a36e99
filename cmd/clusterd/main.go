// Command clusterd runs the standalone cluster stand-in process: the
// durable actor-lifecycle and pinned-object authority, plus a /healthz
// endpoint for operators, mirroring the teacher's signal-driven controller
// binary but without the job-queue dispatch loop. It serves no RPC
// surface: workerd nodes cannot register against this process.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/embercore/workerrt/internal/cluster"
)

func main() {
	walPath := flag.String("wal", "./data/cluster.wal", "path to the cluster write-ahead log")
	snapPath := flag.String("snapshot", "./data/cluster.snapshot", "path to the cluster snapshot file")
	healthAddr := flag.String("health-addr", ":8090", "address to serve /healthz on")
	checkpointInterval := flag.Duration("checkpoint-interval", 30*time.Second, "how often to snapshot and rotate the wal")
	flag.Parse()

	svc, err := cluster.Open(*walPath, *snapPath, nil)
	if err != nil {
		log.Fatalf("failed to open cluster: %v", err)
	}
	defer svc.Close()

	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"nodes":  svc.NodeCount(),
		})
	})

	go func() {
		if err := http.ListenAndServe(*healthAddr, nil); err != nil {
			log.Printf("health server error: %v", err)
		}
	}()

	ticker := time.NewTicker(*checkpointInterval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("clusterd listening for health checks on %s, checkpointing every %s\n", *healthAddr, *checkpointInterval)

	for {
		select {
		case <-ticker.C:
			if err := svc.Checkpoint(); err != nil {
				log.Printf("checkpoint failed: %v", err)
			}
		case <-sigChan:
			fmt.Println("received shutdown signal, checkpointing before exit")
			if err := svc.Checkpoint(); err != nil {
				log.Printf("final checkpoint failed: %v", err)
			}
			return
		}
	}
}
