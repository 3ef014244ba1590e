package sqlstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"plaza/internal/gateway"
)

// DiskBlobs 把对象保存在本地目录，由服务端静态路由对外提供
type DiskBlobs struct {
	Dir     string
	BaseURL string // 例如 http://localhost:8080/files
}

var _ gateway.Blobs = (*DiskBlobs)(nil)

func objectName(path string) string {
	return url.PathEscape(path)
}

func (b *DiskBlobs) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (err error) {
	defer observe("upload", time.Now(), &err)

	dir := filepath.Join(b.Dir, objectName(bucket))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wrap(err)
	}
	f, err := os.OpenFile(filepath.Join(dir, objectName(path)), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return &gateway.GatewayError{Status: 409, Message: "The resource already exists"}
		}
		return wrap(err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return wrap(fmt.Errorf("write object: %w", err))
	}
	return wrap(ctx.Err())
}

func (b *DiskBlobs) PublicURL(bucket, path string) string {
	return strings.TrimRight(b.BaseURL, "/") + "/" + url.PathEscape(objectName(bucket)) + "/" + url.PathEscape(objectName(path))
}
