package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/jomei/notionapi"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sngm3741/form-intake/api/internal/config"
	mongodoc "github.com/sngm3741/form-intake/api/internal/infrastructure/mongo"
	"github.com/sngm3741/form-intake/api/internal/server"
)

func main() {
	cfg := config.Load()
	logger := cfg.ServerLog
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("設定が不正です: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	clients := server.Clients{HTTPClient: &http.Client{Timeout: cfg.MessengerTimeout}}

	if cfg.KVURL != "" {
		redisOptions, err := redis.ParseURL(cfg.KVURL)
		if err != nil {
			logger.Fatalf("KV_URL の解析に失敗しました: %v", err)
		}
		clients.Redis = redis.NewClient(redisOptions)
		if err := clients.Redis.Ping(ctx).Err(); err != nil {
			logger.Printf("Redis への疎通確認に失敗しました: %v", err)
		}
	}

	if cfg.MongoURI != "" {
		clientOptions := options.Client().ApplyURI(cfg.MongoURI).SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
		client, err := mongo.Connect(ctx, clientOptions)
		if err != nil {
			logger.Fatalf("MongoDB 接続に失敗しました: %v", err)
		}
		clients.Mongo = client
		archive := mongodoc.NewSubmissionRepository(client.Database(cfg.MongoDatabase), cfg.SubmissionCollection)
		if err := archive.EnsureIndexes(ctx); err != nil {
			logger.Printf("アーカイブのインデックス作成に失敗しました: %v", err)
		}
	}

	if cfg.NotionToken != "" {
		clients.NotionPages = notionapi.NewClient(notionapi.Token(cfg.NotionToken)).Page
	}

	if cfg.BlobConfigured() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.BlobRegion))
		if err != nil {
			logger.Fatalf("ブロブストレージの設定読み込みに失敗しました: %v", err)
		}
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.BlobEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.BlobEndpoint)
				o.UsePathStyle = true
			}
		})
		clients.BlobUploader = manager.NewUploader(s3Client)
	}

	app := server.New(cfg, clients)
	if err := app.Run(); err != nil {
		logger.Fatalf("サーバー起動に失敗: %v", err)
	}
}
