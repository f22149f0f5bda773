package service

import (
	"fmt"
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// UploadStore 把上传文件保存到本地目录，通过 /uploads 静态路径访问
type UploadStore struct {
	root      string
	urlPrefix string
}

func NewUploadStore(root string) *UploadStore {
	return &UploadStore{root: root, urlPrefix: "/uploads"}
}

func (s *UploadStore) Root() string {
	return s.root
}

// Save 以 "字段名-时间戳-随机数.扩展名" 命名，避免文件名冲突
func (s *UploadStore) Save(dir, field, originalName string, data []byte) (string, error) {
	target := filepath.Join(s.root, dir)
	if err := os.MkdirAll(target, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	name := fmt.Sprintf("%s-%d-%d%s", field, time.Now().UnixMilli(), rand.Int63n(1e9), ext)
	if err := os.WriteFile(filepath.Join(target, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return path.Join(s.urlPrefix, filepath.ToSlash(dir), name), nil
}
