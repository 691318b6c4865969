// Command vote casts one vote against a running engagement server using the
// same client engine as the web app: cooldown, optimistic state and recount.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/amacivic/engagement/internal/engagement"
	"github.com/amacivic/engagement/internal/remote"
	"github.com/amacivic/engagement/pkg/config"
	"github.com/amacivic/engagement/pkg/logging"
)

type voteOptions struct {
	Actor      string
	Target     string
	TargetType string
	Vote       string
}

func main() {
	if err := newVoteCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVoteCommand() *cobra.Command {
	opts := &voteOptions{}

	cmd := &cobra.Command{
		Use:   "vote --actor <user> --target <id> [--vote up|down]",
		Short: "Cast one vote against an engagement server",
		Long: `Cast one vote through the client engine: per-target cooldown, optimistic
display, the remote write and the authoritative recount.

The server address and token come from AMA_REMOTE_URL and AMA_REMOTE_TOKEN
or the config file; --url and --token fill them in when those are unset.

Example:
  vote --actor alice --target post-1 --vote up
  vote --actor alice --target c-9 --type comment --vote down --url http://localhost:8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVote(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Actor, "actor", "", "acting user ID, must match the token subject")
	cmd.Flags().StringVar(&opts.Target, "target", "", "post or comment ID (required)")
	cmd.Flags().StringVar(&opts.TargetType, "type", "post", "post or comment")
	cmd.Flags().StringVar(&opts.Vote, "vote", "up", "up or down")
	cmd.Flags().String("url", "", "engagement server URL")
	cmd.Flags().String("token", "", "bearer token for the actor")
	cmd.Flags().Duration("timeout", 0, "HTTP timeout for the remote client")
	_ = cmd.MarkFlagRequired("target")

	_ = viper.BindPFlag("remote_url", cmd.Flags().Lookup("url"))
	_ = viper.BindPFlag("remote_token", cmd.Flags().Lookup("token"))
	_ = viper.BindPFlag("remote_timeout", cmd.Flags().Lookup("timeout"))

	return cmd
}

func runVote(opts *voteOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logging.GetLogger().Sync()
	logger := logging.GetLogger()

	vt, err := engagement.ParseVoteType(opts.Vote)
	if err != nil {
		return err
	}
	tt := engagement.TargetType(opts.TargetType)
	if !tt.Valid() {
		return fmt.Errorf("invalid target type %q: must be post or comment", opts.TargetType)
	}

	client, err := remote.New(&cfg.Remote)
	if err != nil {
		return fmt.Errorf("failed to create remote client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	voter := engagement.NewVoter(opts.Actor, client, engagement.WithTimeout(cfg.Engagement.VoteTimeout))
	res := voter.Vote(ctx, opts.Target, tt, vt)

	out, _ := json.MarshalIndent(map[string]interface{}{
		"status":     res.Status,
		"state":      res.State,
		"transition": res.Transition,
	}, "", "  ")
	fmt.Println(string(out))

	if !res.OK() {
		logger.Error("Vote not applied", zap.String("status", string(res.Status)), zap.Error(res.Err))
		return fmt.Errorf("vote not applied: %s", res.Status)
	}
	return nil
}
