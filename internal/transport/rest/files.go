package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"learnlab-client/internal/domain"
)

func (c *Client) ListFiles(ctx context.Context) ([]domain.FileInfo, error) {
	var files []domain.FileInfo
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/files/files"}, &files)
	return files, err
}

func (c *Client) GetFile(ctx context.Context, fileID string) (domain.FileInfo, error) {
	var file domain.FileInfo
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/files/files/" + pathID(fileID)}, &file)
	return file, err
}

// UploadFile sends content as the multipart field "file".
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader) (domain.FileInfo, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return domain.FileInfo{}, fmt.Errorf("upload %s: %w", filename, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return domain.FileInfo{}, fmt.Errorf("upload %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return domain.FileInfo{}, fmt.Errorf("upload %s: %w", filename, err)
	}

	var file domain.FileInfo
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/files/upload",
		raw:         &buf,
		contentType: mw.FormDataContentType(),
	}, &file)
	return file, err
}

func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/files/files/" + pathID(fileID)}, nil)
}
