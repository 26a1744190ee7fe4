package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// driveStore uploads into the user's Google Drive. Drive has no presigned
// URLs, so SignedURL hands out the web link recorded at upload time.
type driveStore struct {
	service  *drive.Service
	folderID string

	mu    sync.RWMutex
	files map[string]driveObject // object key -> drive file
}

type driveObject struct {
	id      string
	webLink string
}

func newDriveStore(cfg *DriveConfig) (*driveStore, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	service, err := drive.NewService(context.Background(), option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	log.Info("[Storage] Google Drive store initialized")
	return &driveStore{
		service:  service,
		folderID: cfg.FolderID,
		files:    make(map[string]driveObject),
	}, nil
}

func (d *driveStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	meta := &drive.File{Name: key}
	if d.folderID != "" {
		meta.Parents = []string{d.folderID}
	}

	file, err := d.service.Files.Create(meta).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Fields("id, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	d.mu.Lock()
	d.files[key] = driveObject{id: file.Id, webLink: file.WebViewLink}
	d.mu.Unlock()
	return nil
}

func (d *driveStore) SignedURL(ctx context.Context, key string, _ bool) (string, error) {
	d.mu.RLock()
	obj, ok := d.files[key]
	d.mu.RUnlock()
	if ok {
		return obj.webLink, nil
	}

	// Fall back to a lookup by name for objects uploaded by an earlier
	// process.
	obj, err := d.find(ctx, key)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	d.files[key] = obj
	d.mu.Unlock()
	return obj.webLink, nil
}

func (d *driveStore) Delete(ctx context.Context, key string) error {
	d.mu.RLock()
	obj, ok := d.files[key]
	d.mu.RUnlock()
	if !ok {
		var err error
		obj, err = d.find(ctx, key)
		if err != nil {
			return nil
		}
	}

	if err := d.service.Files.Delete(obj.id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	d.mu.Lock()
	delete(d.files, key)
	d.mu.Unlock()
	return nil
}

func (d *driveStore) find(ctx context.Context, key string) (driveObject, error) {
	list, err := d.service.Files.List().
		Q(fmt.Sprintf("name = '%s' and trashed = false", key)).
		Fields("files(id, webViewLink)").
		Context(ctx).
		Do()
	if err != nil {
		return driveObject{}, fmt.Errorf("failed to look up object %s: %w", key, err)
	}
	if len(list.Files) == 0 {
		return driveObject{}, fmt.Errorf("object %s not found", key)
	}
	return driveObject{id: list.Files[0].Id, webLink: list.Files[0].WebViewLink}, nil
}
