package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/AsynkronIT/protoactor-go/actor"

	"github.com/KaviraWallet/kavira/autolock"
	"github.com/KaviraWallet/kavira/bridge"
	"github.com/KaviraWallet/kavira/chain"
	"github.com/KaviraWallet/kavira/codec"
	"github.com/KaviraWallet/kavira/configuration"
	"github.com/KaviraWallet/kavira/eventhub"
	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
	"github.com/KaviraWallet/kavira/store"
	"github.com/KaviraWallet/kavira/wallet"
	"github.com/KaviraWallet/kavira/werror"
)

// Node assembles the wallet session: record store, event hub, error handler,
// chain client, coordinator, auto-lock guard and signal bridge.
type Node struct {
	log      tplog.Logger
	level    tplogcmm.LogLevel
	config   *configuration.Configuration
	sysActor *actor.ActorSystem

	backend     store.Backend
	recordStore store.RecordStore
	hub         eventhub.EventHub
	handler     *werror.Handler
	chainClient *chain.Client
	coordinator *wallet.Coordinator
	guard       *autolock.Guard
	bridge      *bridge.Bridge
}

func NewNode(rootPath string, backendType store.BackendType) *Node {
	config := configuration.DefConfiguration()
	if rootPath != "" {
		config.RootPath = rootPath
	} else {
		homeDir, _ := os.UserHomeDir()
		config.RootPath = filepath.Join(homeDir, "kavira")
	}

	mainLog, err := tplog.CreateMainLogger(tplogcmm.InfoLevel, tplog.JSONFormat, tplog.StdErrOutput, "")
	if err != nil {
		fmt.Printf("CreateMainLogger error: %v", err)
	}

	level := tplogcmm.InfoLevel
	sysActor := actor.NewActorSystem()

	backend := store.NewBackend(backendType, mainLog, config.RootPath, config.StoreName)
	recordStore := store.NewRecordStore(level, mainLog, backend)

	hub := eventhub.NewEventHub(level, mainLog)

	n := &Node{
		log:         mainLog,
		level:       level,
		config:      config,
		sysActor:    sysActor,
		backend:     backend,
		recordStore: recordStore,
		hub:         hub,
	}

	n.handler = werror.NewHandler(level, mainLog, config.HistoryConfig.MaxErrors, n.emitError)

	netConf := config.NetworkConfig.Check()
	activeHost := ""
	for _, net := range netConf.Networks {
		if net.ID == netConf.ActiveNetworkID {
			activeHost = net.Host
			break
		}
	}
	n.chainClient = chain.NewClient(level, mainLog, codec.CodecType_JSON, activeHost)

	n.coordinator = wallet.NewCoordinator(level, mainLog, config, recordStore, n.chainClient, n.handler, hub)
	n.guard = autolock.NewGuard(level, mainLog, config.AutoLockConfig, n.coordinator, n.onAutoLock)
	n.coordinator.AttachGuard(n.guard)
	n.bridge = bridge.NewBridge(level, mainLog, hub, n.coordinator, n.guard, n.handler)

	return n
}

func (n *Node) Coordinator() *wallet.Coordinator {
	return n.coordinator
}

func (n *Node) emitError(we *werror.WalletError) {
	if err := n.hub.Trig(context.Background(), eventhub.EventName_WalletError, we); err != nil {
		n.log.Errorf("emit wallet error failed: %v", err)
	}
}

func (n *Node) onAutoLock() {
	if err := n.hub.Trig(context.Background(), eventhub.EventName_AutoLocked, &eventhub.LockEvent{Locked: true, Auto: true}); err != nil {
		n.log.Errorf("emit auto-lock failed: %v", err)
	}
}

// Start brings the session up and blocks until SIGINT or SIGTERM.
func (n *Node) Start() {
	var gracefulStop = make(chan os.Signal, 1)
	signal.Notify(gracefulStop, syscall.SIGTERM)
	signal.Notify(gracefulStop, syscall.SIGINT)

	var waitChannel = make(chan bool)

	go func() {
		sig := <-gracefulStop
		n.log.Debugf("caught sig: %v", sig)

		n.log.Warn("GRACEFUL STOP APP")

		n.Stop()

		close(waitChannel)
	}()

	ctx := context.Background()

	if err := n.hub.Start(n.sysActor); err != nil {
		n.log.Panicf("start event hub error: %v", err)
		return
	}

	state := n.coordinator.Initialize(ctx)

	// keep the chain client on the active network
	n.coordinator.Subscribe(func(st wallet.State) {
		if st.ActiveNetwork != nil && st.ActiveNetwork.Host != n.chainClient.Host() {
			n.chainClient.SetHost(st.ActiveNetwork.Host)
		}
	})

	if err := n.bridge.Start(ctx); err != nil {
		n.log.Panicf("start bridge error: %v", err)
		return
	}

	if state.Settings.AutoLock {
		n.guard.Start()
	}

	fmt.Println("All services were started")
	<-waitChannel
}

// Stop unwinds the session in reverse start order.
func (n *Node) Stop() {
	n.guard.Stop()

	if err := n.bridge.Cleanup(context.Background()); err != nil {
		n.log.Errorf("bridge cleanup: %v", err)
	}

	n.coordinator.TransactionManager().Stop()
	n.hub.Stop()

	if err := n.backend.Close(); err != nil {
		n.log.Errorf("close store backend: %v", err)
	}

	n.log.Info("wallet session stopped")
}
