package main

import (
	"context"
	"log"
	"time"

	"blockvault/internal/config"
	"blockvault/internal/ledger"
	"blockvault/internal/pinning"
	"blockvault/internal/repository/historyRepo"
	"blockvault/internal/repository/nonceRepo"
	"blockvault/internal/repository/recordCache"
	"blockvault/internal/repository/tokenBlacklist"
	"blockvault/internal/service/fileService"
	"blockvault/internal/wallet"
	"blockvault/pkg/database/postgres"
	"blockvault/pkg/database/redis"
	"blockvault/pkg/logger"
	"blockvault/pkg/middleware"

	"github.com/coocood/freecache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const contentCacheSize = 64 * 1024 * 1024

func main() {
	cfg, err := config.LoadGatewayConfig()
	if err != nil {
		log.Fatalf("failed to load gateway config: %v", err)
	}

	ctx, err := logger.New(context.Background())
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	mainLogger := logger.GetLogger(ctx)
	defer mainLogger.Sync()

	ethClient, err := ethclient.Dial(cfg.Chain.RPCURL)
	if err != nil {
		mainLogger.Fatal("failed to connect to chain rpc", zap.String("url", cfg.Chain.RPCURL), zap.Error(err))
	}

	provider := wallet.NewKeystoreProvider(cfg.Chain.KeystoreDir, cfg.Chain.KeystorePass, ethClient, 30*time.Second)
	session := wallet.NewSession(provider)
	if res := session.Connect(ctx); !res.OK {
		mainLogger.Fatal("failed to open wallet session", zap.String("reason", res.Reason))
	}
	if err := session.Start(ctx); err != nil {
		mainLogger.Fatal("failed to watch wallet events", zap.Error(err))
	}
	defer session.Close()

	contract, err := ledger.NewContract(ethClient, common.HexToAddress(cfg.Chain.ContractAddress), session, cfg.Chain.ConfirmTimeout)
	if err != nil {
		mainLogger.Fatal("failed to bind registry contract", zap.Error(err))
	}

	store, err := pinning.NewStore(ctx, cfg.PinBackend, cfg.Pinata, cfg.MinIO)
	if err != nil {
		mainLogger.Fatal("failed to build pinning backend", zap.Error(err))
	}

	redisClient := redis.New(cfg.Redis)
	cache := recordCache.New(redisClient, 5*time.Minute)

	pgConn, err := postgres.New(cfg.Postgres)
	if err != nil {
		mainLogger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pgConn.Close(ctx)

	history := historyRepo.New(pgConn)
	if err := history.Init(ctx); err != nil {
		mainLogger.Fatal("failed to init history table", zap.Error(err))
	}

	svc := fileService.New(session, store, contract, cache, history)

	h := &handler{
		ctx:       ctx,
		cfg:       cfg,
		svc:       svc,
		store:     store,
		nonces:    nonceRepo.New(redisClient, cfg.NonceTTL),
		blacklist: tokenBlacklist.New(redisClient),
		contents:  freecache.NewCache(contentCacheSize),
	}

	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsCfg))

	api := r.Group("/api")
	{
		api.POST("/auth/nonce", h.handleNonce)
		api.POST("/auth/login", h.handleLogin)
		api.GET("/content/:cid", h.handleContent)

		authorized := api.Group("/")
		authorized.Use(h.requireFreshToken, middleware.Auth(cfg.JWTSecret))
		{
			authorized.POST("/auth/logout", h.handleLogout)
			authorized.POST("/files", h.handleUpload)
			authorized.GET("/files", h.handleListFiles)
			authorized.GET("/files/shared", h.handleListShared)
			authorized.GET("/files/:id", h.handleFileDetails)
			authorized.DELETE("/files/:id", h.handleDeleteFile)
			authorized.POST("/files/:id/share", h.handleShareFile)
			authorized.GET("/history", h.handleHistory)
		}
	}

	mainLogger.Info("gateway starting", zap.String("port", cfg.HTTPPort))
	if err := r.Run(":" + cfg.HTTPPort); err != nil {
		mainLogger.Fatal("failed to start gateway", zap.Error(err))
	}
}
