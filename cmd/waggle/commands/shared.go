package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/waggleboard/waggle/internal/config"
	"github.com/waggleboard/waggle/internal/localstate"
	"github.com/waggleboard/waggle/internal/printer"
	"github.com/waggleboard/waggle/internal/rollover"
	"github.com/waggleboard/waggle/pkg/board"
)

// session bundles everything a command needs once it has joined a workspace:
// the validated configuration, a connected board client, and the per-host
// state file.
type session struct {
	cfg    *config.WaggleConfig
	client *board.Client
	state  *localstate.Store
}

// joinWorkspace loads waggle.yml, connects to the workspace's Redis, and
// remembers the workspace as the last one used on this host.
func joinWorkspace(ctx context.Context) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.Error(
			"failed to load configuration",
			fmt.Sprintf("Error: %v", err),
			[]string{fmt.Sprintf("Check that %s exists and is valid YAML", configPath)},
		)
	}

	if workspaceOverride != "" {
		cfg.Workspace = workspaceOverride
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client, err := board.NewClient(redisOpts, cfg.Workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to create board client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.Error(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.RedisURL),
			[]string{"Check that Redis is running and redis_url in waggle.yml is correct"},
		)
	}

	statePath, err := localstate.DefaultPath()
	if err != nil {
		client.Close()
		return nil, err
	}
	state, err := localstate.Open(statePath)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open local state: %w", err)
	}
	if err := state.SetLastWorkspace(cfg.Workspace); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to record workspace: %w", err)
	}

	return &session{cfg: cfg, client: client, state: state}, nil
}

// Close releases the session's Redis connection.
func (s *session) Close() error {
	return s.client.Close()
}

// identity builds the local user's broadcast identity from the config.
func (s *session) identity() board.Identity {
	return board.Identity{
		UserID:   s.cfg.User.ID,
		Name:     s.cfg.User.Name,
		Initials: s.cfg.User.Initials,
		Color:    s.cfg.User.Color,
		Avatar:   s.cfg.User.Avatar,
	}
}

// schedule builds the weekly transition schedule from the config.
func (s *session) schedule() rollover.Schedule {
	return rollover.Schedule{
		Weekday: time.Weekday(*s.cfg.Rollover.Weekday),
		Hour:    *s.cfg.Rollover.Hour,
	}
}

// markers returns this host's transition marker store for the joined
// workspace.
func (s *session) markers() *localstate.WorkspaceState {
	return s.state.Workspace(s.client.Workspace())
}
