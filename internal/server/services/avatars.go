package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/common"
	sc "github.com/dmitrijs2005/buddyauth/internal/server/config"
	"github.com/dmitrijs2005/buddyauth/internal/server/models"
	"github.com/dmitrijs2005/buddyauth/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// presignTTL bounds how long presigned avatar URLs stay valid.
const presignTTL = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// AvatarUpload is a presigned upload slot for a profile picture.
type AvatarUpload struct {
	Key       string          `json:"key"`
	UploadURL string          `json:"uploadUrl"`
	Profile   *models.Profile `json:"profile"`
}

// AvatarService hands out presigned S3 URLs for profile pictures. Objects are
// uploaded and fetched by clients directly; the server only records the key.
type AvatarService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
}

func NewAvatarService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config) *AvatarService {
	return &AvatarService{
		db:          db,
		repomanager: repomanager,
		config:      config,
	}
}

// AvatarKeyPrefix is the object key prefix owned by userID.
func AvatarKeyPrefix(userID string) string {
	return "avatars/" + userID + "/"
}

// AvatarStorageKey returns a fresh object key for userID.
func AvatarStorageKey(userID string) string {
	return fmt.Sprintf("%s%v", AvatarKeyPrefix(userID), uuid.New())
}

func (s *AvatarService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			// MinIO and most self-hosted stores need path-style addressing
			o.UsePathStyle = true
		}
	})

	return newS3PresignClient(client), nil
}

// PresignUpload reserves a new avatar key for userID, records it on the
// profile and returns a presigned PUT URL for it.
func (s *AvatarService) PresignUpload(ctx context.Context, userID, contentType string) (*AvatarUpload, error) {
	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	bucket := s.config.S3Bucket
	key := AvatarStorageKey(userID)

	in := &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := presignPutObject(presignClient, ctx, in, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	profile, err := s.repomanager.Profiles(s.db).Update(ctx, userID, models.ProfileUpdate{AvatarURL: &key})
	if err != nil {
		return nil, err
	}

	return &AvatarUpload{Key: key, UploadURL: req.URL, Profile: profile}, nil
}

// PresignDownload returns a presigned URL for the avatar object of userID.
// Only keys under AvatarKeyPrefix(userID) are served; any other stored value,
// external URLs included, yields common.ErrorNotFound so it is never used as
// a redirect target.
func (s *AvatarService) PresignDownload(ctx context.Context, userID string) (string, error) {
	profile, err := s.repomanager.Profiles(s.db).GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.AvatarURL == nil || *profile.AvatarURL == "" {
		return "", common.ErrorNotFound
	}

	key := *profile.AvatarURL
	if !strings.HasPrefix(key, AvatarKeyPrefix(userID)) {
		return "", common.ErrorNotFound
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", fmt.Errorf("s3 config: %w", err)
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}

	return req.URL, nil
}
