// Package bootstrap assembles the service's shared dependencies: config,
// MySQL, Redis, RabbitMQ, the LLM client and the knowledge index.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"internationally/internal/ai"
	"internationally/internal/config"
	"internationally/internal/model"
	mysqlClient "internationally/internal/platform/mysql"
	rabbitmqClient "internationally/internal/platform/rabbitmq"
	redisClient "internationally/internal/platform/redis"
	"internationally/internal/repository"
	"internationally/internal/vectorstore"
	"internationally/internal/worker"
)

type App struct {
	Config        *config.Config
	MySQL         *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	Index         *vectorstore.Index
	AI            *ai.OpenAIClient
	MessageWorker *worker.MessagePersistWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.Session{}, &model.Message{}, &model.KnowledgeSource{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	// A corrupted index file means the knowledge base cannot be trusted;
	// refuse to start rather than silently serve partial retrieval.
	index := vectorstore.New(cfg.Index.Path, cfg.Index.Dimension)
	if err := index.Load(); err != nil {
		if errors.Is(err, vectorstore.ErrIndexCorrupted) {
			return nil, fmt.Errorf("knowledge index at %s is corrupted, re-ingest or reset it: %w", cfg.Index.Path, err)
		}
		return nil, fmt.Errorf("load knowledge index failed: %w", err)
	}

	aiClient := ai.NewOpenAIClient(ai.OpenAIOptions{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Dimension:      cfg.Index.Dimension,
	})

	messageRepo := repository.NewMessageRepository(mysqlDB)
	messageWorker := worker.NewMessagePersistWorker(mqConn, messageRepo, cfg.RabbitMQ.MessagePersistQueue)
	if err := messageWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start message worker failed: %w", err)
	}

	return &App{
		Config:        cfg,
		MySQL:         mysqlDB,
		Redis:         redisCli,
		MQConn:        mqConn,
		Index:         index,
		AI:            aiClient,
		MessageWorker: messageWorker,
		StartedAt:     time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
