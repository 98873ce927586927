// Package sandbox runs dispatched scripts inside a per-workspace Python
// virtual environment.
package sandbox

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

//go:embed helper.py
var helperTemplate string

// Config describes one sandbox.
type Config struct {
	WorkspaceDir string
	PythonBin    string // system interpreter used to provision the venv
	Timeout      time.Duration
	UserID       uint
	UserToken    string
	ServerURL    string
}

// Sandbox executes scripts in an isolated workspace. Every fault —
// interpreter crash, script exception, timeout — comes back as output
// text, never as an error: the model always receives some result.
type Sandbox struct {
	cfg    Config
	logger *logrus.Entry
}

// New creates a sandbox.
func New(cfg Config, logger *logrus.Entry) *Sandbox {
	return &Sandbox{
		cfg:    cfg,
		logger: logger.WithField("component", "sandbox"),
	}
}

// Execute runs one script and returns its combined output.
func (s *Sandbox) Execute(ctx context.Context, script string) string {
	if err := s.provision(ctx); err != nil {
		s.logger.WithError(err).Error("Sandbox provisioning failed")
		return fmt.Sprintf("Error: %v", err)
	}

	name := uuid.New().String() + ".py"
	path := filepath.Join(s.cfg.WorkspaceDir, name)
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	defer os.Remove(path)

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.interpreter(), path)
	cmd.Dir = s.cfg.WorkspaceDir
	out, err := cmd.CombinedOutput()

	if runCtx.Err() == context.DeadlineExceeded {
		return "Error: script execution timed out"
	}
	if err != nil && len(out) == 0 {
		return fmt.Sprintf("Error: %v", err)
	}
	return string(out)
}

// provision sets up the venv and the helper module on first use. The venv
// is considered present when its interpreter binary exists.
func (s *Sandbox) provision(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.WorkspaceDir, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	if _, err := os.Stat(s.interpreter()); err != nil {
		s.logger.Info("Provisioning virtual environment")
		venvDir := filepath.Join(s.cfg.WorkspaceDir, "venv")
		cmd := exec.CommandContext(ctx, s.cfg.PythonBin, "-m", "venv", venvDir)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("create venv: %w: %s", err, out)
		}
	}

	helperPath := filepath.Join(s.cfg.WorkspaceDir, "utils.py")
	if _, err := os.Stat(helperPath); err == nil {
		return nil
	}
	helper := RenderHelper(helperTemplate, s.cfg.UserID, s.cfg.UserToken, s.cfg.ServerURL)
	if err := os.WriteFile(helperPath, []byte(helper), 0o644); err != nil {
		return fmt.Errorf("write helper module: %w", err)
	}
	return nil
}

// interpreter returns the venv interpreter path for this platform.
func (s *Sandbox) interpreter() string {
	venvDir := filepath.Join(s.cfg.WorkspaceDir, "venv")
	if runtime.GOOS == "windows" {
		return filepath.Join(venvDir, "Scripts", "python.exe")
	}
	return filepath.Join(venvDir, "bin", "python")
}

// RenderHelper substitutes the identity placeholders into the helper
// module source.
func RenderHelper(template string, userID uint, userToken, serverURL string) string {
	r := strings.NewReplacer(
		"%user_id", strconv.FormatUint(uint64(userID), 10),
		"%user_token", userToken,
		"%domain_name", serverURL,
	)
	return r.Replace(template)
}
