package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/ochat/internal/model/record"
	"github.com/zhouzirui/ochat/internal/render"
	"github.com/zhouzirui/ochat/internal/store/history"
	"github.com/zhouzirui/ochat/internal/store/jsonlog"
)

func newLogsCmd(flags *globalFlags) *cobra.Command {
	var (
		limit  int
		fromDB bool
	)

	cmd := &cobra.Command{
		Use:       "logs [chat|execute]",
		Short:     "Print recent interaction records",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(record.ModeChat), string(record.ModeExecute)},
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := []record.Mode{record.ModeChat, record.ModeExecute}
			if len(args) == 1 {
				mode, err := record.ParseMode(args[0])
				if err != nil {
					return err
				}
				modes = []record.Mode{mode}
			}
			return runLogs(cmd, flags, modes, limit, fromDB)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records per mode")
	cmd.Flags().BoolVar(&fromDB, "db", false, "read from the sqlite history instead of the JSON logs")
	return cmd
}

func runLogs(cmd *cobra.Command, flags *globalFlags, modes []record.Mode, limit int, fromDB bool) error {
	cfg, err := flags.load(cmd)
	if err != nil {
		return err
	}

	var recent func(mode record.Mode) ([]record.Record, error)
	if fromDB {
		if cfg.Log.HistoryDB == "" {
			return fmt.Errorf("--db needs HISTORY_DB or --history-db")
		}
		db, err := history.Open(cfg.Log.HistoryDB)
		if err != nil {
			return err
		}
		defer db.Close()
		recent = func(mode record.Mode) ([]record.Record, error) {
			return db.Recent(cmd.Context(), mode, limit)
		}
	} else {
		store, err := jsonlog.New(cfg.Log.Dir)
		if err != nil {
			return err
		}
		recent = func(mode record.Mode) ([]record.Record, error) {
			return store.Recent(mode, limit)
		}
	}

	w := cmd.OutOrStdout()
	out := render.New(w, false)
	for _, mode := range modes {
		recs, err := recent(mode)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "== %s ==\n", mode)
		out.Records(recs)
	}
	return nil
}
