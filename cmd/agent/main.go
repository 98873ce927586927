package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"clusterchat/internal/agentapi"
	"clusterchat/internal/config"
	"clusterchat/internal/mirror"
	"clusterchat/internal/poller"
	"clusterchat/internal/sandbox"
	"clusterchat/internal/session"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "agent.ini", "path to the agent INI config")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadAgent(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
		os.Exit(1)
	}
	log.Println("✓ Configuration loaded")

	// 2. Open the session store
	sessions, err := session.Open(filepath.Join(cfg.DataDir, "agent.db"))
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
		os.Exit(1)
	}
	defer sessions.Close()

	client := agentapi.NewClient(cfg.ServerURL)

	// 3. Ensure we have an identity on the server
	sess, err := ensureSession(sessions, client)
	if err != nil {
		log.Fatalf("Failed to establish session: %v", err)
		os.Exit(1)
	}
	client.SetCredentials(sess.UserID, sess.Token)
	log.Printf("✓ Session ready (member %d)", sess.UserID)

	logger := logrus.NewEntry(logrus.StandardLogger())

	// 4. Wire the mirror, sandbox and pollers
	state := mirror.NewState(logger)
	box := sandbox.New(sandbox.Config{
		WorkspaceDir: cfg.WorkspaceDir,
		PythonBin:    cfg.PythonBin,
		Timeout:      time.Duration(cfg.ExecTimeoutSec) * time.Second,
		UserID:       sess.UserID,
		UserToken:    sess.Token,
		ServerURL:    cfg.ServerURL,
	}, logger)

	interval := time.Duration(cfg.PollIntervalSec) * time.Second
	snapshots := poller.NewSnapshotPoller(client, state, interval, logger)
	tasks := poller.NewTaskPoller(client, box, interval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go snapshots.Run(ctx)
	go tasks.Run(ctx)

	log.Println("✓ Agent running")
	<-ctx.Done()
	log.Println("Agent shutting down")
}

// ensureSession loads the stored identity, registering a fresh one on
// first run.
func ensureSession(sessions *session.Store, client *agentapi.Client) (*session.Session, error) {
	sess, err := sessions.Load()
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}

	result, err := client.Auth()
	if err != nil {
		return nil, err
	}
	sess = &session.Session{
		UserID:       result.UserID,
		Token:        result.UserToken,
		ClusterToken: result.ClusterToken,
	}
	if err := sessions.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}
