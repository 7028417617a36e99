// Package cli builds the workerrt binary's cobra command tree and loads
// its YAML configuration, the same shape the teacher's CLI used for its
// queue system (run/status, a cobra.Command per concern, a nested
// struct-per-section Config), retargeted at running a worker-runtime node
// instead of a job-queue controller (SPEC_FULL §10 CLI).
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/embercore/workerrt/internal/cluster"
	"github.com/embercore/workerrt/internal/coreworker"
	"github.com/embercore/workerrt/internal/metrics"
	"github.com/embercore/workerrt/internal/plasma"
	"github.com/embercore/workerrt/internal/rpc"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"gopkg.in/yaml.v3"
)

// Config is the complete system configuration structure, one struct field
// per concern, matching the teacher's nested-struct-per-section shape.
type Config struct {
	Worker struct {
		Mode                         string `yaml:"mode"` // "worker" or "driver"
		ListenAddr                   string `yaml:"listen_addr"`
		MaxDirectCallObjectSizeBytes int    `yaml:"max_direct_call_object_size_bytes"`
		ActorCreationMinRetries      int    `yaml:"actor_creation_min_retries"`
		RayletLivenessIntervalMs     int    `yaml:"raylet_liveness_interval_ms"`
		HeartbeatIntervalMs          int    `yaml:"heartbeat_interval_ms"`
	} `yaml:"worker"`

	Store struct {
		PlasmaCapacityBytes int64 `yaml:"plasma_capacity_bytes"`
	} `yaml:"store"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`

	Cluster struct {
		WALPath      string `yaml:"wal_path"`
		SnapshotPath string `yaml:"snapshot_path"`
	} `yaml:"cluster"`
}

var configFile string

// BuildCLI assembles the workerrt root command.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "workerrt",
		Short:   "workerrt: a per-process worker runtime for task-and-actor execution",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildSubmitCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a worker-runtime node",
		Long:  "Start a CoreWorker process against an embedded cluster stand-in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode()
		},
	}
	return cmd
}

func runNode() error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log.Printf("starting workerrt node in %s mode", cfg.Worker.Mode)

	svc, err := cluster.Open(cfg.Cluster.WALPath, cfg.Cluster.SnapshotPath, nil)
	if err != nil {
		return fmt.Errorf("failed to open cluster: %w", err)
	}
	defer svc.Close()

	plasmaClient := plasma.NewLocal()
	if cfg.Store.PlasmaCapacityBytes > 0 {
		if err := plasmaClient.SetClientOptions("workerrt", cfg.Store.PlasmaCapacityBytes); err != nil {
			return fmt.Errorf("failed to set plasma capacity: %w", err)
		}
	}

	mode := coreworker.ModeWorker
	if cfg.Worker.Mode == "driver" {
		mode = coreworker.ModeDriver
	}

	jobID := ids.NewJobID()
	workerID := ids.NewWorkerID()
	nodeID := ids.NewNodeID()
	addr := object.Address{WorkerID: workerID, NodeID: nodeID, IP: "127.0.0.1"}

	// cw is captured by the dispatcher closure below before it exists;
	// the closure only runs once a task is actually assigned, by which
	// time cw has been assigned its final value.
	var cw *coreworker.CoreWorker

	client, err := cluster.NewClient(svc, workerID, nodeID, addr, cluster.AssignTaskFunc(
		func(ctx context.Context, spec *task.Spec) ([]*object.Object, error) {
			return cw.ExecuteTask(spec)
		}))
	if err != nil {
		return fmt.Errorf("failed to register with cluster: %w", err)
	}

	cw, err = coreworker.New(coreworker.Config{
		Mode:                    mode,
		JobID:                   jobID,
		Address:                 addr,
		Plasma:                  plasmaClient,
		Raylet:                  client,
		Metadata:                client,
		Actors:                  client,
		MaxDirectCallObjectSize: cfg.Worker.MaxDirectCallObjectSizeBytes,
		ActorCreationMinRetries: cfg.Worker.ActorCreationMinRetries,
		RayletLivenessInterval:  time.Duration(cfg.Worker.RayletLivenessIntervalMs) * time.Millisecond,
		HeartbeatInterval:       time.Duration(cfg.Worker.HeartbeatIntervalMs) * time.Millisecond,
		TaskExecutionCallback:   echoTaskExecutionCallback,
		RemoteDialer:            dialPeerWorker,
	})
	if err != nil {
		return fmt.Errorf("failed to build core worker: %w", err)
	}

	ctx := context.Background()
	if err := cw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start core worker: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.NewCollector()
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				log.Printf("metrics server error: %v", err)
			}
		}()
	}

	if cfg.Worker.ListenAddr != "" {
		lis, err := net.Listen("tcp", cfg.Worker.ListenAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.Worker.ListenAddr, err)
		}
		grpcServer := grpc.NewServer()
		rpc.RegisterCoreWorkerServer(grpcServer, coreworker.NewServer(cw))
		log.Printf("worker rpc listening on %s", cfg.Worker.ListenAddr)
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				log.Printf("worker rpc server error: %v", err)
			}
		}()
	}

	log.Println("worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("received shutdown signal, draining and stopping")
	cw.ShutdownAfterDrain(context.Background())
	return nil
}

// dialPeerWorker is the coreworker.Config.RemoteDialer used by the
// standalone binary: a direct-call lease naming another worker's address is
// dialed as a plain insecure gRPC connection, matching the "submit" command's
// own dial (buildSubmitCommand).
func dialPeerWorker(addr object.Address) (grpc.ClientConnInterface, error) {
	return grpc.NewClient(fmt.Sprintf("%s:%d", addr.IP, addr.Port), grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// echoTaskExecutionCallback is the default TaskExecutionCallback for the
// standalone CLI binary: it has no language-runtime to hand tasks to, so it
// simply returns the arguments it was given, byte for byte, once per
// requested return id. Real embedders supply their own callback.
func echoTaskExecutionCallback(spec *task.Spec, args []task.Arg, returnIDs []ids.ObjectID) ([]*object.Object, error) {
	results := make([]*object.Object, len(returnIDs))
	for i := range returnIDs {
		if i < len(args) && args[i].Value != nil {
			results[i] = args[i].Value
			continue
		}
		results[i] = &object.Object{}
	}
	return results, nil
}

func buildSubmitCommand() *cobra.Command {
	var taskFile string
	var workerAddr string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a task described by a JSON file to a running worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskFile == "" {
				return fmt.Errorf("task file is required (use --file or -f)")
			}
			if workerAddr == "" {
				return fmt.Errorf("worker address is required (use --worker)")
			}
			return submitTask(taskFile, workerAddr)
		},
	}

	cmd.Flags().StringVarP(&taskFile, "file", "f", "", "JSON file describing the task to submit")
	cmd.Flags().StringVar(&workerAddr, "worker", "", "worker rpc address, e.g. localhost:50100")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("worker")

	return cmd
}

// submitTaskSpec is the JSON shape accepted by the submit command: a
// minimal function descriptor plus by-value byte arguments, enough to
// exercise PushTask end to end without a language-binding layer.
type submitTaskSpec struct {
	Module       string   `json:"module"`
	Function     string   `json:"function"`
	Args         [][]byte `json:"args"`
	NumReturns   int      `json:"num_returns"`
	IsDirectCall bool     `json:"is_direct_call"`
}

func submitTask(filePath, workerAddr string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read task file: %w", err)
	}
	var spec submitTaskSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("failed to parse task file: %w", err)
	}

	conn, err := grpc.NewClient(workerAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to worker: %w", err)
	}
	defer conn.Close()

	client := rpc.NewCoreWorkerClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statsResp, err := client.GetCoreWorkerStats(ctx, &rpc.GetCoreWorkerStatsRequest{})
	if err != nil {
		return fmt.Errorf("failed to look up worker identity: %w", err)
	}
	targetAddr := rpc.FromAddressWire(statsResp.Address)

	taskArgs := make([]task.Arg, len(spec.Args))
	for i, b := range spec.Args {
		taskArgs[i] = task.Arg{Kind: task.ArgByValue, Value: &object.Object{Data: b}}
	}

	wireSpec := &task.Spec{
		TaskID:   ids.ForNormalTask(ids.NewJobID(), ids.NilTaskID, 1),
		Type:     task.Normal,
		Function: task.FunctionDescriptor{Module: spec.Module, Name: spec.Function},
		Args:     taskArgs,
		Options:  task.Options{NumReturns: spec.NumReturns, IsDirectCall: spec.IsDirectCall},
	}

	resp, err := client.PushTask(ctx, &rpc.PushTaskRequest{
		IntendedWorkerID: targetAddr.WorkerID.Bytes(),
		Task:             rpc.ToTaskWire(wireSpec),
	})
	if err != nil {
		return fmt.Errorf("PushTask rpc failed: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("task failed: %s", resp.Error)
	}
	log.Printf("task completed with %d return value(s)", len(resp.Results))
	return nil
}

func buildStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus()
		},
	}
	return cmd
}

func showStatus() error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("workerrt configuration")
	fmt.Printf("  config file:       %s\n", configFile)
	fmt.Printf("  worker mode:       %s\n", cfg.Worker.Mode)
	fmt.Printf("  worker listen:     %s\n", cfg.Worker.ListenAddr)
	fmt.Printf("  plasma capacity:   %d bytes\n", cfg.Store.PlasmaCapacityBytes)
	fmt.Printf("  cluster wal path:  %s\n", cfg.Cluster.WALPath)
	if cfg.Metrics.Enabled {
		fmt.Printf("  metrics:           enabled on :%d/metrics\n", cfg.Metrics.Port)
	} else {
		fmt.Println("  metrics:           disabled")
	}
	return nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return &cfg, nil
}
