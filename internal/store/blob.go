package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/google/uuid"
)

const recordBlob = "record.json"

// BlobConfig locates the container runs are stored in. With no connection
// string, AccountURL is used with the default Azure credential chain.
type BlobConfig struct {
	AccountURL       string `yaml:"account_url,omitempty" json:"account_url,omitempty"`
	ConnectionString string `yaml:"connection_string,omitempty" json:"connection_string,omitempty"`
	Container        string `yaml:"container,omitempty" json:"container,omitempty"`
	Prefix           string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// blobClient is the subset of blob operations BlobMetaStore needs.
type blobClient interface {
	// Put uploads data to name, replacing any existing blob.
	Put(ctx context.Context, name string, data []byte) error

	// Fetch downloads name. A missing blob is ErrNotFound.
	Fetch(ctx context.Context, name string) ([]byte, error)

	// Names lists blob names under prefix.
	Names(ctx context.Context, prefix string) ([]string, error)
}

// BlobMetaStore keeps each record under <prefix><id>/ with one blob per key.
type BlobMetaStore struct {
	client blobClient
	prefix string
}

// NewBlobMetaStore connects to Azure Blob Storage and creates the container
// when it does not exist yet.
func NewBlobMetaStore(ctx context.Context, cfg BlobConfig) (*BlobMetaStore, error) {
	if cfg.Container == "" {
		return nil, errors.New("blob store: container is required")
	}

	var (
		client *azblob.Client
		err    error
	)
	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.AccountURL != "":
		var cred azcore.TokenCredential
		cred, err = azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("blob store: loading Azure credential: %w", err)
		}
		client, err = azblob.NewClient(cfg.AccountURL, cred, nil)
	default:
		return nil, errors.New("blob store: account_url or connection_string is required")
	}
	if err != nil {
		return nil, fmt.Errorf("blob store: creating client: %w", err)
	}

	if _, err := client.CreateContainer(ctx, cfg.Container, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("blob store: creating container %s: %w", cfg.Container, err)
	}

	return newBlobMetaStore(&azureBlobs{client: client, container: cfg.Container}, cfg.Prefix), nil
}

func newBlobMetaStore(client blobClient, prefix string) *BlobMetaStore {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &BlobMetaStore{client: client, prefix: prefix}
}

func (s *BlobMetaStore) blobName(id, file string) string {
	return s.prefix + path.Join(id, file)
}

func (s *BlobMetaStore) Create(ctx context.Context, title string) (string, error) {
	rec := Record{ID: uuid.NewString(), Title: title, CreatedAt: time.Now().UTC()}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	if err := s.client.Put(ctx, s.blobName(rec.ID, recordBlob), data); err != nil {
		return "", fmt.Errorf("creating run record: %w", err)
	}
	return rec.ID, nil
}

func (s *BlobMetaStore) Lookup(ctx context.Context, id string) (Record, error) {
	data, err := s.client.Fetch(ctx, s.blobName(id, recordBlob))
	if err != nil {
		return Record{}, fmt.Errorf("run %s: %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding run %s: %w", id, err)
	}
	return rec, nil
}

func (s *BlobMetaStore) Get(ctx context.Context, id, key string) ([]byte, error) {
	data, err := s.client.Fetch(ctx, s.blobName(id, key+".json"))
	if err != nil {
		return nil, fmt.Errorf("run %s key %s: %w", id, key, err)
	}
	return data, nil
}

func (s *BlobMetaStore) Set(ctx context.Context, id, key string, value []byte) error {
	if _, err := s.Lookup(ctx, id); err != nil {
		return err
	}
	if err := s.client.Put(ctx, s.blobName(id, key+".json"), value); err != nil {
		return fmt.Errorf("writing run %s key %s: %w", id, key, err)
	}
	return nil
}

func (s *BlobMetaStore) List(ctx context.Context) ([]Record, error) {
	names, err := s.client.Names(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	var records []Record
	for _, name := range names {
		if path.Base(name) != recordBlob {
			continue
		}
		id := path.Base(path.Dir(strings.TrimPrefix(name, s.prefix)))
		rec, err := s.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sortNewestFirst(records)
	return records, nil
}

// azureBlobs adapts [*azblob.Client] to blobClient for one container.
type azureBlobs struct {
	client    *azblob.Client
	container string
}

func (a *azureBlobs) Put(ctx context.Context, name string, data []byte) error {
	_, err := a.client.UploadBuffer(ctx, a.container, name, data, nil)
	return err
}

func (a *azureBlobs) Fetch(ctx context.Context, name string) ([]byte, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, name, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if bloberror.HasCode(err, bloberror.BlobNotFound) ||
			(errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (a *azureBlobs) Names(ctx context.Context, prefix string) ([]string, error) {
	var opts *azblob.ListBlobsFlatOptions
	if prefix != "" {
		opts = &azblob.ListBlobsFlatOptions{Prefix: &prefix}
	}

	var names []string
	pager := a.client.NewListBlobsFlatPager(a.container, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}
