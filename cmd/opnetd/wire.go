package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/btc-vision/opnet-node-sub009/internal/api"
	"github.com/btc-vision/opnet-node-sub009/internal/chainrpcpool"
	"github.com/btc-vision/opnet-node-sub009/internal/chaintap"
	"github.com/btc-vision/opnet-node-sub009/internal/config"
	"github.com/btc-vision/opnet-node-sub009/internal/core/consensus"
	"github.com/btc-vision/opnet-node-sub009/internal/core/epoch"
	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/indexer"
	"github.com/btc-vision/opnet-node-sub009/internal/core/mempool"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/vm"
	"github.com/btc-vision/opnet-node-sub009/internal/fabric"
	"github.com/btc-vision/opnet-node-sub009/internal/logging"
	"github.com/btc-vision/opnet-node-sub009/internal/store/ldbstore"
	"github.com/btc-vision/opnet-node-sub009/internal/store/sqlstore"
)

// app is the fully-wired object graph one opnetd process runs, built once
// at startup the way app/app.go assembles a teacher daglabs node: every
// unit constructed bottom-up (store, then chain access, then the managers
// that depend on them, then the API gateway on top).
type app struct {
	cfg *config.Config
	log *logrus.Entry

	store     ports.Store
	storeDone func() error

	chain   ports.ChainRpc
	tap     *chaintap.Poller
	peering *localPeering
	fab     *fabric.Fabric

	vmHost  *vm.Host
	idx     *indexer.Indexer
	pool    *mempool.Pool
	cons    *consensus.Manager
	epochMg *epoch.Manager

	server *api.Server
}

// buildApp wires every collaborator described in config.Config into a
// runnable app, without starting any background loop yet (the caller's
// subcommand decides what to run).
func buildApp(cfg *config.Config) (*app, error) {
	log := logging.For(logging.SubsystemIndexer)

	store, storeDone, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	workers := make([]ports.ChainRpc, 0, cfg.RPCWorkers)
	for i := 0; i < cfg.RPCWorkers; i++ {
		workers = append(workers, chainrpcpool.NewHTTPClient(cfg.RPCServer, cfg.RPCUser, cfg.RPCPassword, decodeBlock))
	}
	pool, err := chainrpcpool.New(workers)
	if err != nil {
		return nil, errs.Wrapf(errs.KindFatal, "building chain rpc pool: %s", err)
	}

	tap := chaintap.NewPoller(pool, 2*time.Second)
	peering := &localPeering{}

	fab := fabric.New()
	fab.Link(unitIndexer, unitConsensus)

	hooks := newHostHooks(store)
	vmHost := vm.NewHost(
		vm.NewStoreBackend(store),
		opaqueRunner{},
		vm.SpecialContracts{},
		hooks.classifyAccount,
		hooks.blockHash,
		hooks.deployChild,
		5*time.Second,
	)

	trustedSet, err := parseTrustedSet(cfg.TrustedValidators, cfg.Network)
	if err != nil {
		return nil, errs.Wrapf(errs.KindFatal, "parsing trusted validator set: %s", err)
	}

	var signer consensus.Signer
	if cfg.ValidatorKeyHex != "" {
		s, err := newValidatorSigner(cfg.ValidatorKeyHex)
		if err != nil {
			return nil, errs.Wrapf(errs.KindFatal, "loading validator identity: %s", err)
		}
		signer = s
	}
	consMgr := consensus.NewManager(trustedSet, signer, peering)

	a := &app{
		cfg:       cfg,
		log:       log,
		store:     store,
		storeDone: storeDone,
		chain:     pool,
		tap:       tap,
		peering:   peering,
		fab:       fab,
		vmHost:    vmHost,
		pool: mempool.New(mempool.Limits{
			MaxRawBytes:  cfg.MempoolMaxRawBytes,
			MaxPSBTBytes: cfg.MempoolMaxPSBTBytes,
			MaxLimit:     1000,
			Expiry:       cfg.MempoolExpiry,
		}, pool, store),
		cons:    consMgr,
		epochMg: epoch.NewManager(store),
	}

	a.idx = indexer.New(pool, store, decodeRawTx, vmHost, a.onBlockProcessed)

	apiCtx := api.NewContext(cfg.ChainID, a.idx, store, pool, a.pool, consMgr, a.epochMg, newHostSimulator(vmHost))
	apiCtx.MempoolDecode = decodeRawTx
	a.server = api.NewServer(apiCtx, logging.For(logging.SubsystemAPI))

	return a, nil
}

// openStore opens the configured store backend, running migrations first
// when the sql driver is selected.
func openStore(cfg *config.Config) (ports.Store, func() error, error) {
	switch cfg.StoreDriver {
	case "sql":
		store, err := sqlstore.Open("mysql", cfg.StorePath)
		if err != nil {
			return nil, nil, errs.Wrapf(errs.KindFatal, "opening sql store: %s", err)
		}
		if err := sqlstore.Migrate(store.DB()); err != nil {
			return nil, nil, errs.Wrapf(errs.KindFatal, "migrating sql store: %s", err)
		}
		return store, store.Close, nil
	default: // leveldb
		store, err := ldbstore.Open(cfg.StorePath)
		if err != nil {
			return nil, nil, errs.Wrapf(errs.KindFatal, "opening leveldb store: %s", err)
		}
		return store, store.Close, nil
	}
}

// unitIndexer and unitConsensus identify this process's two ends of the
// BlockProcessed link on a.fab (spec §4.9): a single-process deployment
// still runs the indexer and consensus manager as logically distinct
// units, only sharing a goroutine/address space instead of a transport.
var (
	unitIndexer   = fabric.UnitID{Kind: "Indexer"}
	unitConsensus = fabric.UnitID{Kind: "Consensus"}
)

// onBlockProcessed is the indexer's synchronous notification hook: it
// posts a BlockProcessed message on the fabric link to the consensus unit
// (fire-and-forget, spec §4.9) rather than calling the consensus manager
// directly, so the signing/broadcast work runs on consumeBlockProcessed's
// goroutine instead of blocking the indexer's own commit loop.
func (a *app) onBlockProcessed(ev indexer.BlockProcessedEvent) {
	if err := a.fab.Send(unitIndexer, unitConsensus, fabric.Message{Type: fabric.BlockProcessed, Data: ev}); err != nil {
		a.log.WithError(err).Warn("posting block-processed message to consensus unit")
	}
}

// consumeBlockProcessed drains the consensus unit's side of the
// BlockProcessed link, signing a witness for each processed height and
// notifying the WebSocket hub's block subscribers, until ctx is
// cancelled.
func (a *app) consumeBlockProcessed(ctx context.Context) {
	for {
		msg, err := a.fab.Receive(ctx, unitConsensus, unitIndexer)
		if err != nil {
			return
		}
		ev, ok := msg.Data.(indexer.BlockProcessedEvent)
		if !ok {
			continue
		}
		if err := a.cons.OnBlockProcessed(ctx, ev.Header.Height, ev.ChecksumRoot); err != nil {
			a.log.WithError(err).Warn("signing witness for processed block")
		}
		a.server.WSHub().NotifyBlock(&ev.Header)
	}
}

// Close releases the store handle; called on graceful shutdown.
func (a *app) Close() error {
	logging.Close()
	if a.storeDone != nil {
		return a.storeDone()
	}
	return nil
}
