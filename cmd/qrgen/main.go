// qrgen renders the printable QR code cards that link each physical table to
// the ordering page. Codes can be written to a local directory, uploaded to
// the object store, or both.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Kevin-ecometrics/vortice/internal/config"
	"github.com/Kevin-ecometrics/vortice/internal/logger"
	"github.com/Kevin-ecometrics/vortice/internal/storage"

	"github.com/joho/godotenv"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	baseURL := flag.String("base-url", cfg.BaseURL, "site base url encoded into each code")
	count := flag.Int("count", 20, "number of tables to generate codes for")
	outDir := flag.String("out", "./qr-codes", "directory for the generated PNG files")
	upload := flag.Bool("upload", false, "also upload the codes to the object store")
	flag.Parse()

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if *count <= 0 {
		log.Fatal("count must be positive", zap.Int("count", *count))
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal("output directory", zap.String("dir", *outDir), zap.Error(err))
	}

	ctx := context.Background()
	var store *storage.ObjectStore
	if *upload {
		if !cfg.ObjectStoreEnabled() {
			log.Fatal("object store is not configured; cannot upload")
		}
		store, err = storage.NewObjectStore(ctx, storage.Config{
			Endpoint:        cfg.ObjectStoreEndpoint,
			Region:          cfg.ObjectStoreRegion,
			AccessKeyID:     cfg.ObjectStoreAccessKeyID,
			SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
			Bucket:          cfg.ObjectStoreBucket,
			PublicBaseURL:   cfg.ObjectStorePublicBaseURL,
		})
		if err != nil {
			log.Fatal("object store init failed", zap.Error(err))
		}
	}

	for table := 1; table <= *count; table++ {
		url := fmt.Sprintf("%s/customer?table=%d", *baseURL, table)
		png, err := qrcode.Encode(url, qrcode.Medium, 300)
		if err != nil {
			log.Fatal("qr encode failed", zap.Int("table", table), zap.Error(err))
		}

		filename := fmt.Sprintf("table-%d.png", table)
		path := filepath.Join(*outDir, filename)
		if err := os.WriteFile(path, png, 0o644); err != nil {
			log.Fatal("qr write failed", zap.String("path", path), zap.Error(err))
		}

		if store != nil {
			publicURL, err := store.PutObject(ctx, "qr-codes/"+filename, png, "image/png", "")
			if err != nil {
				log.Fatal("qr upload failed", zap.String("file", filename), zap.Error(err))
			}
			log.Info("qr uploaded", zap.Int("table", table), zap.String("url", publicURL))
		}

		log.Info("qr generated", zap.Int("table", table), zap.String("path", path), zap.String("target", url))
	}

	log.Info("done", zap.Int("count", *count), zap.String("dir", *outDir))
}
