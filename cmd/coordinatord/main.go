// cmd/coordinatord is the coordinator daemon: it loads configuration, opens
// the ledger, starts the mesh node and agent registry, and serves the public
// and admin HTTP surfaces.
package main

import (
	"crypto/ed25519"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"coordinator-core/api"
	"coordinator-core/api/admin"
	"coordinator-core/core/auth"
	"coordinator-core/core/blacklist"
	"coordinator-core/core/ledger"
	"coordinator-core/core/mesh"
	"coordinator-core/core/pipeline"
	"coordinator-core/core/registry"
	"coordinator-core/core/security"
	"coordinator-core/pkg/config"
	"coordinator-core/pkg/utils"
)

func main() {
	_ = godotenv.Load(".env")

	root := &cobra.Command{Use: "coordinatord"}
	root.AddCommand(serveCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the coordinator daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(env)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment overlay config to merge (e.g. staging)")
	return cmd
}

func run(env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logrus.NewEntry(logrus.StandardLogger())
	if cfg.Logging.Level != "" {
		if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
			logrus.SetLevel(lvl)
		}
	}

	if cfg.Coordinator.DataDir != "" {
		if err := os.MkdirAll(cfg.Coordinator.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	if dir := filepath.Dir(cfg.Ledger.WALPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create wal dir: %w", err)
		}
	}

	_, signer, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("generate coordinator signing key: %w", err)
	}

	l, err := ledger.Open(ledger.Config{
		WALPath:         cfg.Ledger.WALPath,
		Signer:          signer,
		CheckpointEvery: cfg.Ledger.CheckpointEvery,
		Log:             log,
	})
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer l.Close()

	events, err := security.NewEventLogger(cfg.Coordinator.DataDir+"/events.jsonl", 4096, log)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer events.Close()

	keys := make(map[string]ed25519.PublicKey) // peer ids introduced via /mesh/hello, outside the registry
	var reg *registry.Registry
	keyLookup := func(id string) (ed25519.PublicKey, bool) {
		if reg != nil {
			if pub, ok := reg.PublicKey(id); ok {
				return pub, true
			}
		}
		pub, ok := keys[id]
		return pub, ok
	}
	bl := blacklist.New(keyLookup, l, log)
	reg = registry.New(bl, nil, log)

	nonces := auth.NewNonceStore(auth.MaxClockSkew)
	defer nonces.Close()
	limiter := auth.NewRateLimiter(time.Minute, 60)
	verifier := auth.NewVerifier(keyLookup, nonces, limiter)

	node, err := mesh.NewNode(mesh.Config{
		ListenAddr:     cfg.Mesh.ListenAddr,
		DiscoveryTag:   cfg.Mesh.DiscoveryTag,
		BootstrapPeers: cfg.Mesh.BootstrapPeers,
	}, log)
	if err != nil {
		return fmt.Errorf("start mesh node: %w", err)
	}
	defer node.Close()

	srv := api.NewServer(cfg.Coordinator.ID, signer, log)
	srv.Registry = reg
	srv.Mesh = node
	srv.Peers = mesh.NewPeerStore()
	srv.Dedupe = mesh.NewDedupe()
	srv.Ledger = l
	srv.Blacklist = bl
	srv.Intents = ledger.NewPaymentIntentStore(l)
	srv.Deps = pipeline.NewDependencyTracker()
	srv.InFlight = pipeline.NewInFlightTracker()
	srv.Verifier = verifier
	srv.MeshGate = auth.NewMeshTokenGate(cfg.Coordinator.MeshToken)
	srv.PortalGate = auth.NewPortalTokenGate(cfg.Coordinator.PortalToken)
	srv.Events = events
	srv.Inference = pipeline.NewHTTPInference(utils.EnvOrDefault("INFERENCE_ENDPOINT", "http://localhost:9100/decompose"))

	adminSrv := &admin.Server{
		Registry:   reg,
		Blacklist:  bl,
		PortalGate: srv.PortalGate,
		Log:        log,
	}

	go func() {
		log.Infof("admin api listening on %s", cfg.Coordinator.AdminAddr)
		if err := http.ListenAndServe(cfg.Coordinator.AdminAddr, adminSrv.Router()); err != nil {
			log.WithError(err).Error("admin server stopped")
		}
	}()

	log.Infof("coordinator api listening on %s", cfg.Coordinator.ListenAddr)
	return http.ListenAndServe(cfg.Coordinator.ListenAddr, srv.Router())
}
