// Command opnetd runs the overlay protocol indexing node: it follows a
// base-chain RPC endpoint, classifies and executes overlay transactions,
// and serves the JSON-RPC/WebSocket API other services query. Grounded
// on cmd/btcd/main.go's top-level wiring (parse config, build the
// subsystem graph, run until signalled) generalized from a single
// monolithic daemon into cobra's command tree, matching cmd/kaspawallet's
// subcommand layout (one verb, one focused responsibility) instead.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/btc-vision/opnet-node-sub009/internal/config"
	"github.com/btc-vision/opnet-node-sub009/internal/core/epoch"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/logging"
)

func main() {
	root := &cobra.Command{
		Use:          "opnetd",
		Short:        "Overlay protocol indexing node",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCommand(), newEpochTemplateCommand(), newReindexCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig parses flags and initializes logging, the two steps every
// subcommand needs before it can do anything else.
func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.Parse(args)
	if err != nil {
		return nil, err
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if err := logging.Init(cfg.LogFile, level); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRunCommand is "opnetd run": the long-running daemon that builds the
// full object graph, catches up from the store's last committed height,
// follows new base-chain tips via chaintap, and serves the API.
func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the indexing node and API gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if _, err := a.idx.CatchUp(ctx, nil); err != nil {
				a.log.WithError(err).Error("initial catch-up failed")
			}

			go a.consumeBlockProcessed(ctx)

			events, err := a.tap.Subscribe(ctx)
			if err != nil {
				return err
			}
			go a.followTip(events)

			httpServer := &http.Server{Addr: a.cfg.ListenAPI, Handler: a.server.Router()}
			go func() {
				a.log.WithField("addr", a.cfg.ListenAPI).Info("serving json-rpc/websocket api")
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					a.log.WithError(err).Error("api server stopped")
				}
			}()

			<-ctx.Done()
			a.log.Info("shutting down")
			return httpServer.Shutdown(context.Background())
		},
	}
}

// followTip drains a.tap's event channel, handing each new height to the
// indexer until events closes (context cancellation or a tap failure).
func (a *app) followTip(events <-chan ports.ChainTapEvent) {
	for ev := range events {
		if err := a.idx.HandleNewTip(context.Background(), ev.Height, ev.Hash); err != nil {
			a.log.WithError(err).WithField("height", ev.Height).Warn("processing new tip")
		}
	}
}

// newEpochTemplateCommand is "opnetd epoch-template": prints the current
// epoch's mining template (btc_getEpochTemplate's payload) for operators
// wiring an external epoch miner, without standing up the API server.
func newEpochTemplateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "epoch-template",
		Short: "Print the current epoch's mining template",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}
			store, storeDone, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer storeDone()

			ctx := context.Background()
			latest, ok, err := store.LatestHeader(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("store has no committed headers yet")
			}

			startHeight := epoch.EpochNumber(latest.Height) * epoch.BlocksPerEpoch
			startHeader, ok, err := store.HeaderByHeight(ctx, startHeight)
			if err != nil {
				return err
			}
			if !ok {
				startHeader = latest
			}

			tmpl := epoch.BuildTemplate(latest.Height, startHeader)
			fmt.Printf("epoch=%d target=%s targetHash=%s\n", tmpl.EpochNumber, tmpl.EpochTarget.String(), tmpl.TargetHash.String())
			return nil
		},
	}
}

// newReindexCommand is "opnetd reindex": re-runs CatchUp from a given
// height, for recovering from a corrupted store or a codec change.
func newReindexCommand() *cobra.Command {
	var fromHeight uint64
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Re-process committed heights starting at --from",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go a.consumeBlockProcessed(ctx)

			progress, err := a.idx.CatchUp(ctx, &fromHeight)
			if err != nil {
				return err
			}
			fmt.Printf("reindexed heights %d..%d\n", progress.StartHeight, progress.EndHeight)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&fromHeight, "from", 0, "height to resume indexing from")
	return cmd
}
