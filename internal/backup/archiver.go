package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"canteen-backend/internal/config"
	"canteen-backend/internal/models"
	"canteen-backend/internal/repositories"
	"canteen-backend/internal/timeutil"
)

// Archiver ships nightly order and ledger snapshots to an S3-compatible
// bucket (R2 in production). Keys look like
// theaters/<id>/orders/2026-08-27.json.gz.
type Archiver struct {
	cfg      *config.Config
	client   *s3.Client
	theaters *repositories.TheaterRepository
	orders   *repositories.OrderRepository
	stock    *repositories.StockRepository
}

func NewArchiver(cfg *config.Config, theaters *repositories.TheaterRepository,
	orders *repositories.OrderRepository, stock *repositories.StockRepository) (*Archiver, error) {
	a := &Archiver{cfg: cfg, theaters: theaters, orders: orders, stock: stock}
	if !cfg.Backup.Enabled {
		return a, nil
	}
	if cfg.Backup.Bucket == "" || cfg.Backup.AccessKey == "" || cfg.Backup.SecretKey == "" {
		return nil, fmt.Errorf("backup enabled but bucket or credentials missing")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Backup.AccessKey, cfg.Backup.SecretKey, "")),
		awsconfig.WithRegion(cfg.Backup.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure backup store: %w", err)
	}
	a.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Backup.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Backup.Endpoint)
		}
	})
	return a, nil
}

func (a *Archiver) Enabled() bool {
	return a.client != nil
}

// RunNightly archives the previous day for every active theater. Safe to
// re-run; objects are overwritten in place.
func (a *Archiver) RunNightly(ctx context.Context) {
	if a.client == nil {
		return
	}
	day := timeutil.StartOfDay(timeutil.Now()).AddDate(0, 0, -1)

	theaters, err := a.theaters.List(ctx, true)
	if err != nil {
		log.Printf("[Backup] could not list theaters: %v", err)
		return
	}
	for _, t := range theaters {
		if err := a.archiveOrders(ctx, t.ID, day); err != nil {
			log.Printf("[Backup] order archive failed for theater %d: %v", t.ID, err)
		}
		if err := a.archiveLedger(ctx, t.ID, day); err != nil {
			log.Printf("[Backup] ledger archive failed for theater %d: %v", t.ID, err)
		}
	}
	log.Printf("[Backup] nightly archive finished for %s", day.Format("2006-01-02"))
}

func (a *Archiver) archiveOrders(ctx context.Context, theaterID int, day time.Time) error {
	since := day
	until := day.AddDate(0, 0, 1)
	orders, err := a.orders.List(ctx, &models.OrderFilter{
		TheaterID: theaterID,
		Since:     &since,
		Until:     &until,
	})
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}
	key := fmt.Sprintf("theaters/%d/orders/%s.json.gz", theaterID, day.Format("2006-01-02"))
	return a.put(ctx, key, orders)
}

func (a *Archiver) archiveLedger(ctx context.Context, theaterID int, day time.Time) error {
	year, month := day.Year(), int(day.Month())
	var months []*models.StockMonth
	for _, ledger := range []models.LedgerKind{models.LedgerTheater, models.LedgerCafe} {
		rows, err := a.stock.ListForTheater(ctx, theaterID, ledger, year, month)
		if err != nil {
			return err
		}
		months = append(months, rows...)
	}
	if len(months) == 0 {
		return nil
	}
	key := fmt.Sprintf("theaters/%d/ledger/%04d-%02d.json.gz", theaterID, year, month)
	return a.put(ctx, key, months)
}

func (a *Archiver) put(ctx context.Context, key string, v interface{}) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(v); err != nil {
		gz.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.cfg.Backup.Bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Ping verifies bucket access at boot so misconfiguration surfaces early.
func (a *Archiver) Ping(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	_, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(a.cfg.Backup.Bucket),
		MaxKeys: aws.Int32(1),
	})
	return err
}
