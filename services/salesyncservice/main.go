package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexkalak/presale_sync/common/external/rpcclient"
	"github.com/alexkalak/presale_sync/common/external/txsender"
	"github.com/alexkalak/presale_sync/common/external/wallet"
	"github.com/alexkalak/presale_sync/common/helpers"
	"github.com/alexkalak/presale_sync/common/helpers/envhelper"
	"github.com/alexkalak/presale_sync/common/helpers/logger"
	"github.com/alexkalak/presale_sync/common/periphery/pgdatabase"
	"github.com/alexkalak/presale_sync/common/periphery/redisdb"
	"github.com/alexkalak/presale_sync/common/repo/purchaserepo"
	"github.com/alexkalak/presale_sync/common/repo/snapshotrepo"
	"github.com/alexkalak/presale_sync/services/salesyncservice/src/controllers/salehttp"
	"github.com/alexkalak/presale_sync/services/salesyncservice/src/salesyncservice"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
)

func main() {
	env, err := envhelper.GetEnv()
	if err != nil {
		panic(err)
	}

	log := logger.New(env.LOG_LEVEL, env.LOG_FORMAT)

	command := flag.String("command", "", "What command to run, empty = serve (serve | history)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ethClient, err := ethclient.DialContext(ctx, env.ETH_RPC_HTTP)
	if err != nil {
		panic(err)
	}
	defer ethClient.Close()

	fiatRate, err := decimal.NewFromString(env.NATIVE_FIAT_RATE)
	if err != nil {
		panic(fmt.Errorf("NATIVE_FIAT_RATE: %w", err))
	}

	rpcClient, err := rpcclient.NewRpcClient(rpcclient.RpcClientConfig{
		SaleContract:   env.SALE_CONTRACT,
		RouterContract: env.ROUTER_CONTRACT,
		TokenContract:  env.TOKEN_CONTRACT,
		NativeFiatRate: fiatRate,
	}, rpcclient.RpcClientDependencies{
		Backend: ethClient,
		Logger:  log,
	})
	if err != nil {
		panic(err)
	}

	session := wallet.NewSession()
	if env.WALLET_PRIV_KEY != "" {
		keyWallet, err := wallet.NewKeyWallet(wallet.KeyWalletConfig{
			PrivateKeyHex: env.WALLET_PRIV_KEY,
		}, wallet.KeyWalletDependencies{
			Backend: ethClient,
			Logger:  log,
		})
		if err != nil {
			panic(err)
		}
		session.Connect(keyWallet)
	} else {
		log.Warn().Msg("WALLET_PRIV_KEY not set, running read-only")
	}

	txSender, err := txsender.New(txsender.TxSenderConfig{
		SaleContract: env.SALE_CONTRACT,
		PollInterval: time.Duration(env.CONFIRM_POLL_SECONDS) * time.Second,
	}, txsender.TxSenderDependencies{
		Session: session,
		Backend: ethClient,
		Logger:  log,
	})
	if err != nil {
		panic(err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	serviceDependencies := salesyncservice.SaleSyncServiceDependencies{
		RpcClient:  rpcClient,
		TxSender:   txSender,
		Session:    session,
		Logger:     log,
		Registerer: registry,
	}

	var purchaseDBRepo purchaserepo.PurchaseDBRepo
	if env.PostgresEnabled() {
		pgDB, err := pgdatabase.New(pgdatabase.PgDatabaseConfig{
			Host:     env.POSTGRES_HOST,
			Port:     env.POSTGRES_PORT,
			User:     env.POSTGRES_USER,
			Password: env.POSTGRES_PASSWORD,
			DBName:   env.POSTGRES_DB_NAME,
			SSlMode:  env.POSTGRES_SSL_MODE,
		})
		if err != nil {
			panic(err)
		}
		defer pgDB.Close()

		purchaseDBRepo, err = purchaserepo.NewDBRepo(purchaserepo.PurchaseDBRepoDependencies{
			Database: pgDB,
			Logger:   log,
		})
		if err != nil {
			panic(err)
		}
		serviceDependencies.PurchaseDBRepo = purchaseDBRepo
	}

	if env.KafkaEnabled() {
		purchaseStreamRepo, err := purchaserepo.NewStreamRepo(purchaserepo.PurchaseStreamRepoConfig{
			KafkaServer: env.KAFKA_SERVER,
			KafkaTopic:  env.KAFKA_PURCHASES_TOPIC,
		}, purchaserepo.PurchaseStreamRepoDependencies{
			Logger: log,
		})
		if err != nil {
			panic(err)
		}
		defer purchaseStreamRepo.Close()
		serviceDependencies.PurchaseStreamRepo = purchaseStreamRepo
	}

	if env.RedisEnabled() {
		redisDB, err := redisdb.New(redisdb.RedisDatabaseConfig{
			RedisServer: env.REDIS_SERVER,
		})
		if err != nil {
			panic(err)
		}
		defer redisDB.Close()

		snapshotCacheRepo, err := snapshotrepo.NewCacheRepo(snapshotrepo.SnapshotCacheRepoConfig{
			TTL: 24 * time.Hour,
		}, snapshotrepo.SnapshotCacheRepoDependencies{
			Database: redisDB,
		})
		if err != nil {
			panic(err)
		}
		serviceDependencies.SnapshotCacheRepo = snapshotCacheRepo
	}

	if *command == "history" {
		printHistory(ctx, env, session, purchaseDBRepo)
		return
	}

	saleSyncService, err := salesyncservice.New(salesyncservice.SaleSyncServiceConfig{
		ChainID:             env.CHAIN_ID,
		SyncInterval:        time.Duration(env.SYNC_INTERVAL_SECONDS) * time.Second,
		LeaderboardPageSize: int(env.LEADERBOARD_PAGE_SIZE),
	}, serviceDependencies)
	if err != nil {
		panic(err)
	}

	if err := saleSyncService.Start(ctx); err != nil {
		panic(err)
	}
	defer saleSyncService.Stop()

	if _, ok := session.Current(); ok {
		if _, err := saleSyncService.Connect(ctx); err != nil {
			log.Error().Err(err).Msg("initial wallet connect failed")
		}
	}

	httpServer, err := salehttp.New(salehttp.SaleHTTPServerConfig{
		Port:          env.HTTP_PORT,
		SiteOrigin:    env.SITE_ORIGIN,
		AllowedOrigin: env.SITE_ORIGIN,
	}, salehttp.SaleHTTPServerDependencies{
		SaleSyncService: saleSyncService,
		Gatherer:        registry,
		Logger:          log,
	})
	if err != nil {
		panic(err)
	}

	if err := httpServer.Start(ctx); err != nil {
		log.Error().Err(err).Msg("http server stopped")
	}
}

func printHistory(ctx context.Context, env *envhelper.Environment, session *wallet.Session, repo purchaserepo.PurchaseDBRepo) {
	if repo == nil {
		fmt.Println("POSTGRES_HOST is not set, no purchase journal")
		return
	}
	w, ok := session.Current()
	if !ok {
		fmt.Println("WALLET_PRIV_KEY is not set")
		return
	}

	purchases, err := repo.GetPurchasesByBuyer(ctx, env.CHAIN_ID, w.Address().Hex(), 50)
	if err != nil {
		panic(err)
	}

	for _, p := range purchases {
		fmt.Printf("%s  %-9s  %s  block=%d  ref=%s\n",
			p.CreatedAt.Format(time.RFC3339),
			p.Status,
			helpers.FromBaseUnits(p.ValueWei, helpers.NATIVE_DECIMALS).String(),
			p.BlockNumber,
			p.Referrer,
		)
	}
}
