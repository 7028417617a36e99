// Command driver runs a short-lived CoreWorker in driver mode: it submits
// the tasks described by a JSON script, waits for every result, prints
// them, and exits, the same role a driver process plays against a real
// cluster per §1's worker/driver process taxonomy.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/embercore/workerrt/internal/cluster"
	"github.com/embercore/workerrt/internal/coreworker"
	"github.com/embercore/workerrt/internal/plasma"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type scriptTask struct {
	Module   string   `json:"module"`
	Function string   `json:"function"`
	Args     [][]byte `json:"args"`
}

type script struct {
	Tasks []scriptTask `json:"tasks"`
}

func main() {
	scriptPath := flag.String("script", "", "path to a JSON file describing tasks to submit")
	walPath := flag.String("wal", "./data/driver.wal", "path to the cluster write-ahead log")
	snapPath := flag.String("snapshot", "./data/driver.snapshot", "path to the cluster snapshot file")
	flag.Parse()

	if *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "usage: driver -script tasks.json")
		os.Exit(1)
	}

	data, err := os.ReadFile(*scriptPath)
	if err != nil {
		log.Fatalf("failed to read script: %v", err)
	}
	var sc script
	if err := json.Unmarshal(data, &sc); err != nil {
		log.Fatalf("failed to parse script: %v", err)
	}

	svc, err := cluster.Open(*walPath, *snapPath, nil)
	if err != nil {
		log.Fatalf("failed to open cluster: %v", err)
	}
	defer svc.Close()

	jobID := ids.NewJobID()
	workerID := ids.NewWorkerID()
	nodeID := ids.NewNodeID()
	addr := object.Address{WorkerID: workerID, NodeID: nodeID, IP: "127.0.0.1"}

	var cw *coreworker.CoreWorker
	client, err := cluster.NewClient(svc, workerID, nodeID, addr, cluster.AssignTaskFunc(
		func(ctx context.Context, spec *task.Spec) ([]*object.Object, error) {
			return cw.ExecuteTask(spec)
		}))
	if err != nil {
		log.Fatalf("failed to register with cluster: %v", err)
	}

	cw, err = coreworker.New(coreworker.Config{
		Mode:     coreworker.ModeDriver,
		JobID:    jobID,
		Address:  addr,
		Plasma:   plasma.NewLocal(),
		Raylet:   client,
		Metadata: client,
		Actors:   client,
		TaskExecutionCallback: func(spec *task.Spec, args []task.Arg, returnIDs []ids.ObjectID) ([]*object.Object, error) {
			results := make([]*object.Object, len(returnIDs))
			for i := range returnIDs {
				if i < len(args) && args[i].Value != nil {
					results[i] = args[i].Value
					continue
				}
				results[i] = &object.Object{}
			}
			return results, nil
		},
		RemoteDialer: func(addr object.Address) (grpc.ClientConnInterface, error) {
			return grpc.NewClient(fmt.Sprintf("%s:%d", addr.IP, addr.Port), grpc.WithTransportCredentials(insecure.NewCredentials()))
		},
	})
	if err != nil {
		log.Fatalf("failed to build core worker: %v", err)
	}

	ctx := context.Background()
	if err := cw.Start(ctx); err != nil {
		log.Fatalf("failed to start core worker: %v", err)
	}
	defer cw.Shutdown(ctx)

	for i, t := range sc.Tasks {
		args := make([]task.Arg, len(t.Args))
		for j, b := range t.Args {
			args[j] = task.Arg{Kind: task.ArgByValue, Value: &object.Object{Data: b}}
		}

		returnIDs, err := cw.SubmitTask(ctx, task.FunctionDescriptor{Module: t.Module, Name: t.Function}, args, task.Options{NumReturns: 1})
		if err != nil {
			log.Printf("task %d submit failed: %v", i, err)
			continue
		}

		results, err := cw.Get(ctx, returnIDs, 5000)
		if err != nil {
			log.Printf("task %d get failed: %v", i, err)
			continue
		}
		for _, r := range results {
			fmt.Printf("task %d (%s.%s) -> %q\n", i, t.Module, t.Function, r.Data)
		}
	}
}
