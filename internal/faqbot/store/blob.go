package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrBlobNotFound 表示持久化数据不存在。
var ErrBlobNotFound = errors.New("store: blob not found")

// BlobStore 定义知识库快照的持久化接口。
type BlobStore interface {
	// Save 原子写入数据。同一 key 的并发读取只会看到旧值或新值。
	Save(ctx context.Context, key string, data []byte) error

	// Load 读取数据。key 不存在时返回 ErrBlobNotFound。
	Load(ctx context.Context, key string) ([]byte, error)

	// Keys 列出全部已保存的 key。
	Keys(ctx context.Context) ([]string, error)
}

// fileBlobStore 基于本地文件系统的 BlobStore 实现。
// 写入时先落临时文件再 rename，保证替换原子性。
type fileBlobStore struct {
	dir string
}

var _ BlobStore = (*fileBlobStore)(nil)

const blobExt = ".kb"

// NewFileBlobStore 创建文件系统 BlobStore，目录不存在时自动创建。
func NewFileBlobStore(dir string) (BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &fileBlobStore{dir: dir}, nil
}

func (s *fileBlobStore) path(key string) string {
	// key 作为文件名的一部分，替换路径分隔符避免逃逸出存储目录
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, safe+blobExt)
}

func (s *fileBlobStore) Save(_ context.Context, key string, data []byte) error {
	target := s.path(key)

	tmp, err := os.CreateTemp(s.dir, filepath.Base(target)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close blob: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace blob: %w", err)
	}
	return nil
}

func (s *fileBlobStore) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *fileBlobStore) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, blobExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, blobExt))
	}
	return keys, nil
}
