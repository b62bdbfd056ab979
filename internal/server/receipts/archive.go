// Package receipts archives captured payment intents to an S3-compatible
// bucket as receipts/<intent id>.json.
package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	sc "github.com/dmitrijs2005/paykiosk/internal/server/config"
	"github.com/dmitrijs2005/paykiosk/internal/server/models"
)

// Archive stores a receipt for a captured intent.
type Archive interface {
	Archive(ctx context.Context, pi *models.PaymentIntent) error
}

// Nop is used when no bucket is configured.
type Nop struct{}

func (Nop) Archive(context.Context, *models.PaymentIntent) error { return nil }

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectPutter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Receipt is the JSON document written to the bucket.
type Receipt struct {
	IntentID   string            `json:"intent_id"`
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	Status     string            `json:"status"`
	Email      string            `json:"email,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CapturedAt time.Time         `json:"captured_at"`
}

type S3Archive struct {
	bucket string
	client objectPutter
}

// NewS3Archive builds an S3 client with static credentials against the
// configured endpoint. Path-style addressing keeps MinIO happy.
func NewS3Archive(ctx context.Context, cfg *sc.Config) (*S3Archive, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Archive{bucket: cfg.S3Bucket, client: client}, nil
}

// Key returns the object key for intentID.
func Key(intentID string) string {
	return "receipts/" + intentID + ".json"
}

func (a *S3Archive) Archive(ctx context.Context, pi *models.PaymentIntent) error {
	body, err := json.Marshal(Receipt{
		IntentID:   pi.ID,
		Amount:     pi.Amount,
		Currency:   pi.Currency,
		Status:     pi.Status,
		Email:      pi.Email,
		Metadata:   pi.Metadata,
		CapturedAt: pi.UpdatedAt.UTC(),
	})
	if err != nil {
		return err
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(Key(pi.ID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", Key(pi.ID), err)
	}
	return nil
}
