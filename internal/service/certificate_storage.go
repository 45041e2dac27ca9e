package service

import (
	"context"
	"errors"
	"fmt"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"os"
	"path/filepath"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// LocalCertificateStorage 证书文件保存在本地目录
type LocalCertificateStorage struct {
	Root string
}

// Delete 文件不存在视为已删除
func (p *LocalCertificateStorage) Delete(ctx context.Context, key string) error {
	path, err := p.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// path 拒绝跳出根目录的 key
func (p *LocalCertificateStorage) path(key string) (string, error) {
	root := filepath.Clean(p.Root)
	path := filepath.Join(root, filepath.FromSlash(key))
	if path != root && !strings.HasPrefix(path, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid certificate key %q", key)
	}
	return path, nil
}

// MinioCertificateStorage MinIO 存储
type MinioCertificateStorage struct {
	Bucket string
	Client *minio.Client
}

func NewMinioCertificateStorage(cfg *config.StorageConfig) (*MinioCertificateStorage, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}
	return &MinioCertificateStorage{Bucket: cfg.MinioBucket, Client: client}, nil
}

func (p *MinioCertificateStorage) Delete(ctx context.Context, key string) error {
	return p.Client.RemoveObject(ctx, p.Bucket, key, minio.RemoveObjectOptions{})
}

// OSSCertificateStorage 阿里云 OSS 存储
type OSSCertificateStorage struct {
	Bucket string
	Client *oss.Client
}

func NewOSSCertificateStorage(cfg *config.StorageConfig) (*OSSCertificateStorage, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSCertificateStorage{Bucket: cfg.OSSBucket, Client: client}, nil
}

func (p *OSSCertificateStorage) Delete(ctx context.Context, key string) error {
	bucket, err := p.Client.Bucket(p.Bucket)
	if err != nil {
		return err
	}
	return bucket.DeleteObject(key)
}

// NewCertificateStorage 按配置选择存储实现，远端初始化失败时退回本地目录
func NewCertificateStorage(cfg *config.StorageConfig) FileRemover {
	switch cfg.Type {
	case util.StorageMinio:
		p, err := NewMinioCertificateStorage(cfg)
		if err == nil {
			return p
		}
		logger.Log.Error("Failed to init minio storage, falling back to local", zap.Error(err))
	case util.StorageOSS:
		p, err := NewOSSCertificateStorage(cfg)
		if err == nil {
			return p
		}
		logger.Log.Error("Failed to init oss storage, falling back to local", zap.Error(err))
	}
	return &LocalCertificateStorage{Root: cfg.LocalPath}
}
