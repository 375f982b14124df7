package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmehdipour/titletester/internal/lock"
	"github.com/jmehdipour/titletester/internal/model"
	"github.com/jmehdipour/titletester/internal/quota"
	"github.com/spf13/cobra"
)

var operations = []string{
	model.OpVideosList.String(),
	model.OpVideosUpdate.String(),
	model.OpSearchList.String(),
	model.OpChannelsList.String(),
}

func newQuotaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect or adjust the daily YouTube API quota",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Print today's quota usage",
			Args:  cobra.NoArgs,
			RunE: withQuota(func(cmd *cobra.Command, t quotaTools, _ []string) error {
				report, err := buildStatusReport(cmd.Context(), t)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			}),
		},
		&cobra.Command{
			Use:       "check <operation>",
			Short:     "Check whether an operation fits in today's quota",
			Args:      cobra.ExactArgs(1),
			ValidArgs: operations,
			RunE: withQuota(func(cmd *cobra.Command, t quotaTools, args []string) error {
				res, err := t.quota.Check(cmd.Context(), model.QuotaOperation(args[0]))
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			}),
		},
		&cobra.Command{
			Use:       "record <operation>",
			Short:     "Record a completed operation against today's quota",
			Args:      cobra.ExactArgs(1),
			ValidArgs: operations,
			RunE: withQuota(func(cmd *cobra.Command, t quotaTools, args []string) error {
				n, err := t.quota.Record(cmd.Context(), model.QuotaOperation(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "usage: %d\n", n)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Reset today's quota usage",
			Args:  cobra.NoArgs,
			RunE: withQuota(func(cmd *cobra.Command, t quotaTools, _ []string) error {
				if err := t.quota.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ">> Quota reset ✅")
				return nil
			}),
		},
	)
	return cmd
}

type quotaTools struct {
	quota *quota.Manager
	locks *lock.Manager
}

type resetLockView struct {
	Locked bool   `json:"locked"`
	Owner  string `json:"owner,omitempty"`
	TTL    string `json:"ttl,omitempty"`
}

type statusReport struct {
	Quota     quota.Status  `json:"quota"`
	ResetLock resetLockView `json:"resetLock"`
}

// buildStatusReport adds the holder of the reset lock to today's usage.
func buildStatusReport(ctx context.Context, t quotaTools) (statusReport, error) {
	info, err := t.locks.Info(ctx, quota.ResetLock)
	if err != nil {
		return statusReport{}, fmt.Errorf("reset lock info: %w", err)
	}
	view := resetLockView{Locked: info.Locked, Owner: info.Owner}
	if info.TTL > 0 {
		view.TTL = info.TTL.String()
	}
	return statusReport{Quota: t.quota.Status(ctx), ResetLock: view}, nil
}

// withQuota connects the stores, builds the quota and lock managers and runs fn.
func withQuota(fn func(cmd *cobra.Command, t quotaTools, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, lg, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = lg.Sync() }()

		rdb, err := openRedis(cmd.Context(), cfg, lg)
		if err != nil {
			return err
		}
		if rdb == nil {
			return errors.New("quota: redis is not configured")
		}
		defer func() { _ = rdb.Close() }()

		sqlDB, err := openMySQL(cmd.Context(), cfg, lg)
		if err != nil {
			return err
		}
		if sqlDB != nil {
			defer sqlDB.Close()
		}

		locks := newLockManager(cfg, rdb, lg)
		return fn(cmd, quotaTools{
			quota: newQuotaManager(cfg, rdb, sqlDB, locks, lg),
			locks: locks,
		}, args)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
