package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"southwinds.dev/keyslot/internal/debug"
)

const (
	ctxTimeout = 10 * time.Second
)

// S3Store implements the Store interface against any S3-compatible object
// store (MinIO, AWS S3). Object layout:
//
//	bucket/
//	├── [keyPrefix/]sealing.salt            # store-scoped sealing salt
//	└── [keyPrefix/]keys/
//	    ├── 00000000-00000007.key           # one object per key record
//	    └── 00000000-40000001.key
type S3Store struct {
	client     *minio.Client
	bucketName string
	keyPrefix  string
	sealer     *sealer
}

// S3Config contains the configuration required to connect to S3 (MinIO)
type S3Config struct {
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Bucket          string `json:"bucket"`
	KeyPrefix       string `json:"key_prefix"`
	UseSSL          bool   `json:"use_ssl"`
	Region          string `json:"region"`
}

// NewS3Store initializes an S3-backed store. It establishes the client,
// ensures the bucket exists, and, when a passphrase is given, loads or
// creates the store-scoped sealing salt before deriving the sealing key.
func NewS3Store(config S3Config, passphrase string) (*S3Store, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	store := &S3Store{
		client:     client,
		bucketName: config.Bucket,
		keyPrefix:  config.KeyPrefix,
	}

	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	if err = store.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	if passphrase != "" {
		salt, err := store.loadOrCreateSalt(ctx)
		if err != nil {
			return nil, err
		}
		store.sealer, err = newSealer(passphrase, salt)
		if err != nil {
			return nil, err
		}
	}

	return store, nil
}

// NewS3StoreFromConfig initializes a new S3Store instance from the given StoreConfig
func NewS3StoreFromConfig(config StoreConfig) (*S3Store, error) {
	if config.Type != StoreTypeS3 {
		return nil, fmt.Errorf("invalid store type for MinIO: %s", config.Type)
	}

	configBytes, err := json.Marshal(config.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	var s3Config S3Config
	if err = json.Unmarshal(configBytes, &s3Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal S3 config: %w", err)
	}
	passphrase, _ := config.Config["passphrase"].(string)

	return NewS3Store(s3Config, passphrase)
}

func (s3s *S3Store) ensureBucket(ctx context.Context) error {
	exists, err := s3s.client.BucketExists(ctx, s3s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err = s3s.client.MakeBucket(ctx, s3s.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (s3s *S3Store) buildPath(parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	if s3s.keyPrefix != "" {
		segments = append(segments, strings.Trim(s3s.keyPrefix, "/"))
	}
	segments = append(segments, parts...)
	return strings.Join(segments, "/")
}

func (s3s *S3Store) recordObject(ref KeyRef) string {
	return s3s.buildPath(keysDirName, ref.objectName())
}

func (s3s *S3Store) loadOrCreateSalt(ctx context.Context) ([]byte, error) {
	objectName := s3s.buildPath(saltFileName)

	salt, err := s3s.getObject(ctx, objectName)
	if err == nil {
		return salt, nil
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return nil, fmt.Errorf("failed to read sealing salt: %w", err)
	}

	salt, err = newSealingSalt()
	if err != nil {
		return nil, err
	}
	if err = s3s.putObject(ctx, objectName, salt); err != nil {
		return nil, fmt.Errorf("failed to write sealing salt: %w", err)
	}
	return salt, nil
}

func (s3s *S3Store) getObject(ctx context.Context, objectName string) ([]byte, error) {
	object, err := s3s.client.GetObject(ctx, s3s.bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s3s *S3Store) putObject(ctx context.Context, objectName string, data []byte) error {
	_, err := s3s.client.PutObject(ctx, s3s.bucketName, objectName,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		})
	return err
}

// Save stores a record, replacing any existing one for the reference
func (s3s *S3Store) Save(ref KeyRef, rec *Record) error {
	data, err := encodeRecord(rec, s3s.sealer)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	debug.Print("saving key record %s to s3\n", ref)
	if err = s3s.putObject(ctx, s3s.recordObject(ref), data); err != nil {
		return fmt.Errorf("failed to store key record %s: %w", ref, err)
	}
	return nil
}

// Load retrieves the record for a reference
func (s3s *S3Store) Load(ref KeyRef) (*Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	data, err := s3s.getObject(ctx, s3s.recordObject(ref))
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read key record %s: %w", ref, err)
	}

	return decodeRecord(data, s3s.sealer, ref)
}

// Exists reports whether a record is present for the reference
func (s3s *S3Store) Exists(ref KeyRef) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	_, err := s3s.client.StatObject(ctx, s3s.bucketName, s3s.recordObject(ref), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat key record %s: %w", ref, err)
}

// Delete removes the record for a reference
func (s3s *S3Store) Delete(ref KeyRef) error {
	exists, err := s3s.Exists(ref)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	if err = s3s.client.RemoveObject(ctx, s3s.bucketName, s3s.recordObject(ref), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete key record %s: %w", ref, err)
	}
	return nil
}

// List returns the references of all stored records
func (s3s *S3Store) List() ([]KeyRef, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	prefix := s3s.buildPath(keysDirName) + "/"
	refs := make([]KeyRef, 0)

	for object := range s3s.client.ListObjects(ctx, s3s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list key records: %w", object.Err)
		}
		name := strings.TrimPrefix(object.Key, prefix)
		if ref, ok := parseObjectName(name); ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// Ping tests connectivity to the object store
func (s3s *S3Store) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	if _, err := s3s.client.BucketExists(ctx, s3s.bucketName); err != nil {
		return fmt.Errorf("store not reachable: %w", err)
	}
	return nil
}

// Close releases client resources; the MinIO client holds no open handles
func (s3s *S3Store) Close() error {
	return nil
}

// GetType retrieves the type of store being used
func (s3s *S3Store) GetType() string {
	return string(StoreTypeS3)
}
