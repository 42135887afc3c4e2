package featurebank

import (
	"context"
	"io"
	"os"

	"github.com/k-tonal/featurebank/blobstore"
)

// Publish uploads the store file at path to bs under name. The blob only
// becomes visible once the upload completes.
func Publish(ctx context.Context, bs blobstore.BlobStore, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := bs.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Abort()
		return err
	}
	return w.Close()
}

// Fetch downloads the blob named name from bs into a local file at path.
// The file appears at path only after the full download succeeded.
func Fetch(ctx context.Context, bs blobstore.BlobStore, name, path string) error {
	b, err := bs.Open(ctx, name)
	if err != nil {
		return err
	}
	defer b.Close()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	_, err = io.Copy(f, io.NewSectionReader(b, 0, b.Size()))
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
