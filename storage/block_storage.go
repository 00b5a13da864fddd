package storage

import (
	"bytes"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"
)

// BlockStorageConfig points at the S3-compatible bucket that receives
// schedule-table snapshots.
type BlockStorageConfig struct {
	Host      string `mapstructure:"host" json:"host,omitempty"`
	Region    string `mapstructure:"region" json:"region,omitempty"`
	AccessKey string `mapstructure:"access_key" json:"access_key,omitempty"`
	SecretKey string `mapstructure:"secret" json:"secret,omitempty"`
	Bucket    string `mapstructure:"bucket" json:"bucket,omitempty"`
}

// BlockStorage uploads ledger snapshots to an S3-compatible bucket. Used by
// the admin-triggered backup endpoint.
type BlockStorage struct {
	cfg     BlockStorageConfig
	session *session.Session
	s3      *s3.S3
	logger  *logrus.Logger
}

func NewBlockStorage(cfg BlockStorageConfig, logger *logrus.Logger) (*BlockStorage, error) {
	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(cfg.Host),
		Region:           aws.String(cfg.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("fail to create s3 session: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BlockStorage{
		cfg:     cfg,
		session: sess,
		s3:      s3.New(sess),
		logger:  logger,
	}, nil
}

func (b *BlockStorage) UploadFile(content []byte, fileName string) error {
	b.logger.WithFields(logrus.Fields{
		"file_name": fileName,
		"length":    len(content),
	}).Info("uploading snapshot")
	_, err := b.s3.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(fileName),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return fmt.Errorf("fail to upload file %s: %w", fileName, err)
	}
	return nil
}

func (b *BlockStorage) FileExist(fileName string) (bool, error) {
	_, err := b.s3.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(fileName),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}
