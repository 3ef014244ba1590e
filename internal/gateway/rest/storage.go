package rest

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

func objectPath(bucket, path string) string {
	return url.PathEscape(bucket) + "/" + url.PathEscape(path)
}

// Upload 上传对象到存储桶，同名对象已存在时由网关返回错误
func (c *Client) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/storage/v1/object/"+objectPath(bucket, path), body)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")

	_, _, err = c.do("upload", req)
	return err
}

// PublicURL 公开存储桶中对象的访问地址
func (c *Client) PublicURL(bucket, path string) string {
	return c.baseURL + "/storage/v1/object/public/" + objectPath(bucket, path)
}
