package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"

	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/config"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/eventbus"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/handler"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/database"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/inventory"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/search"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/repository"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/router"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/service"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/service/chatengine"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()

	if cfg.Database.Type != "mysql" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	// 初始化数据库
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化 Repository
	workspaceRepo := repository.NewWorkspaceRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// 模型清单，配置了 Redis 时缓存解析结果
	inv := inventory.NewFromConfig(cfg.LLM)
	var resolver inventory.Resolver = inv
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		resolver = inventory.NewCachedResolver(inv, inv, client, cfg.Redis.TTL)
		klog.V(6).Infof("启用模型解析缓存: %s", cfg.Redis.Addr)
	}

	bus := eventbus.NewChatEventBus()

	// 初始化 Service
	workspaceService := service.NewWorkspaceService(workspaceRepo)
	workflowService := service.NewWorkflowService(workflowRepo, workspaceRepo)
	chatService := service.NewChatService(chatRepo, messageRepo, workflowRepo, workspaceRepo, bus, service.ChatEngineConfig{
		Compile: chatengine.CompileOptions{
			Search: search.Config{
				BaseURL:        cfg.Search.BaseURL,
				Limit:          cfg.Search.Limit,
				ScoreThreshold: cfg.Search.ScoreThreshold,
				Filter:         cfg.Search.Filter,
				ModelRefKey:    cfg.Search.ModelRefKey,
				HTTPClient:     &http.Client{Timeout: cfg.Search.Timeout},
			},
			Models:    resolver,
			MaxTokens: cfg.Chat.MaxNewTokens,
			Verbose:   cfg.Chat.Verbose,
		},
		HistoryLimit: cfg.Chat.HistoryLimit,
		Streaming:    cfg.Chat.UseStreaming,
	})

	// 初始化 Handler
	workspaceHandler := handler.NewWorkspaceHandler(workspaceService)
	workflowHandler := handler.NewWorkflowHandler(workflowService)
	chatHandler := handler.NewChatHandler(chatService)
	chatSocketHandler := handler.NewChatSocketHandler(chatService, bus)
	inventoryHandler := handler.NewInventoryHandler(inv)

	// 设置路由
	r := router.Setup(cfg, workspaceHandler, workflowHandler, chatHandler, chatSocketHandler, inventoryHandler)

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
