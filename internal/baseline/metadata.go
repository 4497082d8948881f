package baseline

import (
	"context"
	"os"
	"os/exec"
	"os/user"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"
)

// CollectMetadata captures a snapshot's provenance. Every field except the
// timestamp is best-effort: a missing repo or tool never blocks a save.
func CollectMetadata(dbtBinary string, log *zap.Logger) Metadata {
	return Metadata{
		Timestamp:  time.Now().UTC(),
		GitCommit:  headCommit(log),
		DbtVersion: dbtVersion(dbtBinary, log),
		Username:   currentUsername(),
	}
}

func headCommit(log *zap.Logger) string {
	repo, err := git.PlainOpenWithOptions(".", &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		log.Debug("not in a git repository", zap.Error(err))
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		log.Debug("could not resolve HEAD", zap.Error(err))
		return ""
	}
	return head.Hash().String()
}

func dbtVersion(dbtBinary string, log *zap.Logger) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, dbtBinary, "--version").Output()
	if err != nil {
		log.Debug("could not determine dbt version", zap.Error(err))
		return ""
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for _, line := range lines {
		if idx := strings.Index(line, "dbt version:"); idx >= 0 {
			return strings.TrimSpace(line[idx+len("dbt version:"):])
		}
	}
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0])
	}
	return ""
}

func currentUsername() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if name := os.Getenv("USERNAME"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}
