package main

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"blockvault/internal/config"
	"blockvault/internal/ledger"
	"blockvault/internal/model/fileInfo"
	"blockvault/internal/pinning"
	"blockvault/internal/repository/historyRepo"
	"blockvault/internal/repository/recordCache"
	"blockvault/internal/service/fileService"
	"blockvault/internal/wallet"
	"blockvault/pkg/database/postgres"
	"blockvault/pkg/database/redis"
	"blockvault/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const usage = `usage: blockvault <command> [args]

commands:
  upload <path>            pin a file and record it on the ledger
  list                     list files you own, newest first
  shared                   list files shared with you
  details <id>             show one file record
  share <id> <address>     grant read access to another wallet
  delete <id>              remove the ledger record and unpin content
  history [limit]          show your recent ledger operations
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadClientConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, err := logger.New(context.Background())
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	mainLogger := logger.GetLogger(ctx)
	defer mainLogger.Sync()

	ethClient, err := ethclient.Dial(cfg.Chain.RPCURL)
	if err != nil {
		log.Fatalf("failed to connect to chain rpc %s: %v", cfg.Chain.RPCURL, err)
	}

	provider := wallet.NewKeystoreProvider(cfg.Chain.KeystoreDir, cfg.Chain.KeystorePass, ethClient, 30*time.Second)
	session := wallet.NewSession(provider)
	if res := session.Connect(ctx); !res.OK {
		log.Fatalf("failed to open wallet session: %s", res.Reason)
	}
	defer session.Close()

	contract, err := ledger.NewContract(ethClient, common.HexToAddress(cfg.Chain.ContractAddress), session, cfg.Chain.ConfirmTimeout)
	if err != nil {
		log.Fatalf("failed to bind registry contract: %v", err)
	}

	store, err := pinning.NewStore(ctx, cfg.PinBackend, cfg.Pinata, cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to build pinning backend: %v", err)
	}

	// cache and history are conveniences: the client stays usable without
	// redis or postgres nearby
	var cache fileService.RecordCacher
	redisClient := redis.New(cfg.Redis)
	if err := redisClient.Ping(ctx).Err(); err == nil {
		cache = recordCache.New(redisClient, 5*time.Minute)
	} else {
		mainLogger.Warn("redis unreachable, record cache disabled", zap.Error(err))
	}

	var history fileService.HistoryStore
	if pgConn, err := postgres.New(cfg.Postgres); err == nil {
		repo := historyRepo.New(pgConn)
		if err := repo.Init(ctx); err == nil {
			history = repo
			defer pgConn.Close(ctx)
		} else {
			mainLogger.Warn("history table init failed, history disabled", zap.Error(err))
		}
	} else {
		mainLogger.Warn("postgres unreachable, history disabled", zap.Error(err))
	}

	svc := fileService.New(session, store, contract, cache, history)

	account, _ := session.Account()
	fmt.Printf("connected as %s\n", account.Hex())

	if err := run(ctx, svc, store, os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func run(ctx context.Context, svc *fileService.FileService, store pinning.Store, cmd string, args []string) error {
	switch cmd {
	case "upload":
		if len(args) != 1 {
			return fmt.Errorf("upload needs exactly one path")
		}
		return runUpload(ctx, svc, args[0])
	case "list":
		files, err := svc.ListOwnedFiles(ctx)
		if err != nil {
			return err
		}
		printFiles(files)
		return nil
	case "shared":
		files, err := svc.ListSharedFiles(ctx)
		if err != nil {
			return err
		}
		printFiles(files)
		return nil
	case "details":
		if len(args) != 1 {
			return fmt.Errorf("details needs a file id")
		}
		file, err := svc.GetFileDetails(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("id:      %s\nname:    %s\ntype:    %s\nsize:    %d bytes\ncid:     %s\nowner:   %s\ncreated: %s\nurl:     %s\n",
			file.ID, file.Name, file.MimeType, file.SizeBytes, file.ContentID, file.Owner,
			file.CreatedAt.Format(time.RFC3339), store.URLFor(file.ContentID))
		return nil
	case "share":
		if len(args) != 2 {
			return fmt.Errorf("share needs a file id and a recipient address")
		}
		if _, err := svc.ShareFile(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("file %s shared with %s\n", args[0], args[1])
		return nil
	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("delete needs a file id")
		}
		if err := svc.DeleteFile(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("file %s deleted\n", args[0])
		return nil
	case "history":
		limit := 20
		if len(args) == 1 {
			parsed, err := strconv.Atoi(args[0])
			if err != nil || parsed <= 0 {
				return fmt.Errorf("limit must be a positive integer")
			}
			limit = parsed
		}
		entries, err := svc.History(ctx, limit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %-7s file=%s status=%s tx=%s\n",
				e.CreatedAt.Format(time.RFC3339), e.Op, e.FileID, e.Status, e.TxHash)
		}
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runUpload(ctx context.Context, svc *fileService.FileService, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	file, err := svc.UploadFile(ctx, filepath.Base(path), mimeType, f, info.Size(), func(p int) {
		fmt.Printf("\rprogress: %3d%%", p)
	})
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("uploaded %s\n  id:  %s\n  cid: %s\n", file.Name, file.ID, file.ContentID)
	return nil
}

func printFiles(files []*fileInfo.File) {
	if len(files) == 0 {
		fmt.Println("no files")
		return
	}
	for _, f := range files {
		fmt.Printf("%-6s %-30s %10d bytes  %s  %s\n",
			f.ID, f.Name, f.SizeBytes, f.CreatedAt.Format("2006-01-02 15:04"), f.ContentID)
	}
}
