package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sniper-core/internal/api"
	"sniper-core/internal/custody"
	"sniper-core/internal/engine"
	"sniper-core/internal/events"
	"sniper-core/internal/ipc"
	"sniper-core/internal/monitor"
	"sniper-core/internal/risk"
	"sniper-core/pkg/config"
	"sniper-core/pkg/db"
	"sniper-core/pkg/ledger"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("starting dispatch core (port=%s, rpc=%s)", cfg.Port, cfg.RPCURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	// Wallet
	store := custody.NewStore()
	payer, err := store.SetupWallet(custody.Policy{
		Mode:          cfg.WalletType,
		KeypairPath:   cfg.WalletKeypairPath,
		EncodedSecret: cfg.ImportedSecret,
	})
	if err != nil {
		log.Fatalf("setup wallet: %v", err)
	}
	signer, ok := store.Signer(payer)
	if !ok {
		log.Fatalf("no signer for wallet %s", payer)
	}
	log.Printf("wallet configured: %s", payer)

	// Ledger client
	client := ledger.NewRPCClient(cfg.RPCURL, cfg.RPCRateLimit)
	if balance, err := client.GetBalance(ctx, payer); err != nil {
		log.Printf("balance check failed (continuing): %v", err)
	} else {
		log.Printf("connected; balance: %.4f SOL", float64(balance)/1e9)
	}

	// Risk gate
	gate, err := risk.NewGate(database)
	if err != nil {
		log.Printf("risk gate init failed, using in-memory defaults: %v", err)
		gate = risk.NewInMemory(risk.DefaultLimits())
	}
	if lf, err := config.LoadLimitsFile(cfg.RiskLimitsPath); err != nil {
		log.Fatalf("load limits file: %v", err)
	} else if lf != nil {
		if err := gate.UpdateLimits(ctx, risk.Limits{
			MaxTransactionAmount: lf.MaxTransactionAmount,
			DailyLimit:           lf.DailyLimit,
			MaxSlippagePercent:   lf.MaxSlippagePercent,
			MinLiquidity:         lf.MinLiquidity,
		}); err != nil {
			log.Fatalf("apply limits file: %v", err)
		}
	}

	// Pending tracking
	pending := monitor.NewPendingSet()
	mon := &monitor.Monitor{
		Set:           pending,
		Client:        client,
		Bus:           bus,
		DB:            database,
		Interval:      cfg.ConfirmInterval,
		MaxPendingAge: cfg.MaxPendingAge,
	}
	mon.Start(ctx)

	// Execution engine
	exec := engine.NewExecutor(client, signer, pending, bus, database)
	exec.MaxPriceImpact = cfg.MaxPriceImpact

	defaults := engine.DefaultConfig()
	defaults.RetryDelay = cfg.RetryDelay
	defaults.Timeout = cfg.ExecTimeout
	defaults.SimulationRequired = cfg.SimulateFirst

	// IPC request channel
	ipcServer := &ipc.Server{
		SocketPath: cfg.SocketPath,
		Gate:       gate,
		Exec:       exec,
		Defaults:   defaults,
	}
	go func() {
		if err := ipcServer.Start(ctx); err != nil {
			log.Printf("ipc server: %v", err)
			stop()
		}
	}()

	// HTTP admin/observability surface
	apiServer := api.NewServer(bus, database, gate, exec, pending, client, cfg.JWTSecret, cfg.AdminPassword)
	go func() {
		if err := apiServer.Start(":" + cfg.Port); err != nil {
			log.Printf("http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
}
