package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"biteback/config"
	"biteback/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ObjectPutter is the part of the S3 client the proof store writes through.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type ProofUpload struct {
	StepIndex int
	Image     []byte
}

// ProofStorage is the blob store for proof and cover images. Proof uploads
// never overwrite each other; cover images are replaced in place.
type ProofStorage interface {
	Store(ctx context.Context, customerID, missionID uuid.UUID, stepIndex int, image []byte) (string, error)
	StoreAll(ctx context.Context, customerID, missionID uuid.UUID, uploads []ProofUpload) (map[int]string, error)
	StoreMissionImage(ctx context.Context, restaurantID, missionID uuid.UUID, image []byte) (string, error)
}

type ProofStoreService struct {
	client        ObjectPutter
	bucket        string
	baseURL       string
	uploadTimeout time.Duration
	maxParallel   int64
	metrics       *MetricsService
	log           logger.Logger
}

func NewProofStoreService(cfg config.Config, metrics *MetricsService) (*ProofStoreService, error) {
	log := logger.New("proofStoreService").Function("NewProofStoreService")

	options := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(regionOrDefault(cfg.ProofRegion)),
	}
	if cfg.ProofAccessKey != "" {
		options = append(options, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.ProofAccessKey, cfg.ProofSecretKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(context.Background(), options...)
	if err != nil {
		return nil, log.Err("failed to load object storage config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ProofEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.ProofEndpoint)
			o.UsePathStyle = true
		}
	})

	log.Info("Proof store initialized", "bucket", cfg.ProofBucket, "endpoint", cfg.ProofEndpoint)
	return NewProofStoreWithClient(client, cfg, metrics), nil
}

func NewProofStoreWithClient(client ObjectPutter, cfg config.Config, metrics *MetricsService) *ProofStoreService {
	maxParallel := int64(cfg.ProofMaxParallelUploads)
	if maxParallel <= 0 {
		maxParallel = 1
	}

	return &ProofStoreService{
		client:        client,
		bucket:        cfg.ProofBucket,
		baseURL:       publicBaseURL(cfg),
		uploadTimeout: cfg.UploadTimeout(),
		maxParallel:   maxParallel,
		metrics:       metrics,
		log:           logger.New("proofStoreService"),
	}
}

// ProofKeyPrefix is shared by every upload for one step.
func ProofKeyPrefix(customerID, missionID uuid.UUID, stepIndex int) string {
	return fmt.Sprintf("proofs/%s/%s/step-%d/", customerID, missionID, stepIndex)
}

// ProofKey names a single upload. Each attempt gets its own object, so a late
// upload can never replace an image already recorded on a completion.
func ProofKey(customerID, missionID uuid.UUID, stepIndex int, uploadID uuid.UUID) string {
	return ProofKeyPrefix(customerID, missionID, stepIndex) + uploadID.String()
}

func MissionImageKey(restaurantID, missionID uuid.UUID) string {
	return fmt.Sprintf("missions/%s/%s/cover", restaurantID, missionID)
}

func (s *ProofStoreService) Store(
	ctx context.Context,
	customerID, missionID uuid.UUID,
	stepIndex int,
	image []byte,
) (string, error) {
	if stepIndex < 0 {
		return "", s.log.Function("Store").ErrorWithType(
			types.ErrValidation,
			"invalid step index",
			"stepIndex", stepIndex,
		)
	}

	uploadID, err := uuid.NewV7()
	if err != nil {
		return "", s.log.Function("Store").Err("failed to generate upload id", err)
	}

	url, err := s.put(ctx, ProofKey(customerID, missionID, stepIndex, uploadID), image)
	s.metrics.ObserveProofUpload(err)
	return url, err
}

// StoreAll uploads every proof concurrently. The first failure cancels the
// remaining uploads and the call fails as a whole.
func (s *ProofStoreService) StoreAll(
	ctx context.Context,
	customerID, missionID uuid.UUID,
	uploads []ProofUpload,
) (map[int]string, error) {
	log := s.log.Function("StoreAll")

	if len(uploads) == 0 {
		return nil, log.ErrorWithType(types.ErrValidation, "no proofs to upload")
	}

	urls := make([]string, len(uploads))
	sem := semaphore.NewWeighted(s.maxParallel)
	g, gctx := errgroup.WithContext(ctx)

	for i, upload := range uploads {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return log.ErrorWithType(types.ErrStore, "upload cancelled", "stepIndex", upload.StepIndex)
			}
			defer sem.Release(1)

			url, err := s.Store(gctx, customerID, missionID, upload.StepIndex, upload.Image)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[int]string, len(uploads))
	for i, upload := range uploads {
		result[upload.StepIndex] = urls[i]
	}

	log.Info("Proofs uploaded", "customerID", customerID, "missionID", missionID, "count", len(result))
	return result, nil
}

func (s *ProofStoreService) StoreMissionImage(
	ctx context.Context,
	restaurantID, missionID uuid.UUID,
	image []byte,
) (string, error) {
	return s.put(ctx, MissionImageKey(restaurantID, missionID), image)
}

func (s *ProofStoreService) put(ctx context.Context, key string, image []byte) (string, error) {
	log := s.log.Function("put")

	if len(image) == 0 {
		return "", log.ErrorWithType(types.ErrValidation, "image is empty", "key", key)
	}

	contentType := http.DetectContentType(image)
	if !strings.HasPrefix(contentType, "image/") {
		return "", log.ErrorWithType(
			types.ErrValidation,
			"upload is not an image",
			"key", key,
			"contentType", contentType,
		)
	}

	uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	_, err := s.client.PutObject(uploadCtx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(image),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(image))),
	})
	if err != nil {
		return "", log.ErrorWithType(types.ErrStore, "failed to upload image", "key", key, "error", err)
	}

	return s.baseURL + "/" + key, nil
}

func publicBaseURL(cfg config.Config) string {
	switch {
	case cfg.ProofPublicBaseURL != "":
		return strings.TrimSuffix(cfg.ProofPublicBaseURL, "/")
	case cfg.ProofEndpoint != "":
		return strings.TrimSuffix(cfg.ProofEndpoint, "/") + "/" + cfg.ProofBucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.ProofBucket, regionOrDefault(cfg.ProofRegion))
	}
}

func regionOrDefault(region string) string {
	if region == "" {
		return "us-east-1"
	}
	return region
}
