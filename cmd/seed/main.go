package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type seedOptions struct {
	envName    string
	apiBaseURL string
	count      int
	randomSeed int64
}

func main() {
	opts := parseFlags()
	logger := logrus.New()

	if err := loadEnvFiles(opts.envName); err != nil {
		logger.Printf("環境変数ファイルを読み込めませんでした (続行します): %v", err)
	}
	apiBaseURL := strings.TrimRight(firstNonEmpty(opts.apiBaseURL, os.Getenv("SEED_API_URL"), "http://localhost:8080"), "/")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	rng := rand.New(rand.NewSource(opts.randomSeed))
	client := &http.Client{Timeout: 10 * time.Second}

	delivered, failed := 0, 0
	for _, submission := range generateSubmissions(rng, opts.count) {
		if err := postSubmission(ctx, client, apiBaseURL, submission); err != nil {
			logger.WithField("submissionId", submission.ID).Errorf("送信に失敗しました: %v", err)
			failed++
			continue
		}
		delivered++
	}

	logger.Printf("Seed 完了: delivered=%d failed=%d api=%s (env=%s seed=%d)", delivered, failed, apiBaseURL, opts.envName, opts.randomSeed)
	if failed > 0 {
		os.Exit(1)
	}
}

func parseFlags() seedOptions {
	var opts seedOptions
	flag.StringVar(&opts.envName, "env", "local", "env ディレクトリ内の env ファイル名 (例: local, staging)")
	flag.StringVar(&opts.apiBaseURL, "api", "", "送信先 API のベース URL (未指定時は SEED_API_URL)")
	flag.IntVar(&opts.count, "count", 20, "生成する送信数")
	flag.Int64Var(&opts.randomSeed, "seed", time.Now().UnixNano(), "乱数シード（再現用）")
	flag.Parse()
	return opts
}

func loadEnvFiles(envName string) error {
	base := filepath.Clean(filepath.Join("..", "env"))
	files := []string{
		filepath.Join(base, "shared.env"),
		filepath.Join(base, fmt.Sprintf("%s.env", envName)),
	}
	for _, file := range files {
		if err := godotenv.Overload(file); err != nil {
			return fmt.Errorf("%s の読み込みに失敗しました: %w", file, err)
		}
	}
	return nil
}

func postSubmission(ctx context.Context, client *http.Client, apiBaseURL string, submission seedSubmission) error {
	body, err := json.Marshal(submission)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBaseURL+"/api/submit", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		message, _ := io.ReadAll(io.LimitReader(res.Body, 1<<12))
		return fmt.Errorf("status=%d body=%s", res.StatusCode, strings.TrimSpace(string(message)))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
