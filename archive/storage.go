// archive/storage.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package archive stores sweep results as msgpack+zstd objects in a
// local directory or a Google Cloud Storage bucket.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	fpath "path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// CredentialsEnv names the environment variable holding the service
// account JSON used for gs:// archives.
const CredentialsEnv = "ARRIVALS_GCS_CREDENTIALS"

var ErrNoCredentials = errors.New(CredentialsEnv + " environment variable not set")

type StorageBackend interface {
	// List returns the sizes of all objects under the given prefix.
	List(path string) (map[string]int64, error)
	OpenRead(path string) (io.ReadCloser, error)
	Store(path string, r io.Reader) (int64, error)
	StoreObject(path string, object any) (int64, error)
	LoadObject(path string, object any) error
	Delete(path string) error
	Close()
}

// Pool a limited number of them to keep memory use under control.
var zstdEncoders chan *zstd.Encoder

func init() {
	const nenc = 4
	zstdEncoders = make(chan *zstd.Encoder, nenc)
	for range nenc {
		ze, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression), zstd.WithEncoderConcurrency(1))
		if err != nil {
			panic(err)
		}
		zstdEncoders <- ze
	}
}

type CountingWriter struct {
	io.Writer
	N int64
}

func (w *CountingWriter) Write(b []byte) (int, error) {
	n, err := w.Writer.Write(b)
	w.N += int64(n)
	return n, err
}

// encodeObject writes object to w and returns the number of compressed
// bytes written.
func encodeObject(w io.Writer, object any) (int64, error) {
	cw := &CountingWriter{Writer: w}

	zw := <-zstdEncoders
	defer func() { zstdEncoders <- zw }()
	zw.Reset(cw)

	if err := msgpack.NewEncoder(zw).Encode(object); err != nil {
		return 0, err
	} else if err := zw.Close(); err != nil {
		return 0, err
	}
	return cw.N, nil
}

func decodeObject(r io.Reader, object any) error {
	zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return err
	}
	defer zr.Close()

	return msgpack.NewDecoder(zr).Decode(object)
}

// Open returns the backend for the given location: "gs://bucket/prefix"
// for Cloud Storage, anything else is a local directory. With dryRun,
// reads go to the backend but writes are only counted.
func Open(location string, dryRun bool) (StorageBackend, error) {
	var b StorageBackend
	var err error
	if rest, ok := strings.CutPrefix(location, "gs://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		b, err = MakeGCSBackend(bucket, prefix)
	} else {
		b, err = MakeLocalBackend(location)
	}
	if err != nil {
		return nil, err
	}

	if dryRun {
		return DryRunBackend{g: b}, nil
	}
	return b, nil
}

///////////////////////////////////////////////////////////////////////////
// LocalBackend

type LocalBackend struct {
	root string
}

func MakeLocalBackend(root string) (StorageBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return LocalBackend{root: root}, nil
}

func (l LocalBackend) List(path string) (map[string]int64, error) {
	m := make(map[string]int64)
	dir := fpath.Join(l.root, path)
	err := fpath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := fpath.Rel(l.root, p)
		if err != nil {
			return err
		}
		m[fpath.ToSlash(rel)] = info.Size()
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	return m, err
}

func (l LocalBackend) OpenRead(path string) (io.ReadCloser, error) {
	return os.Open(fpath.Join(l.root, path))
}

func (l LocalBackend) create(path string) (*os.File, error) {
	p := fpath.Join(l.root, path)
	if err := os.MkdirAll(fpath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	return os.Create(p)
}

func (l LocalBackend) Store(path string, r io.Reader) (int64, error) {
	f, err := l.create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}

func (l LocalBackend) StoreObject(path string, object any) (int64, error) {
	f, err := l.create(path)
	if err != nil {
		return 0, err
	}
	n, err := encodeObject(f, object)
	if err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}

func (l LocalBackend) LoadObject(path string, object any) error {
	f, err := l.OpenRead(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return decodeObject(f, object)
}

func (l LocalBackend) Delete(path string) error {
	return os.Remove(fpath.Join(l.root, path))
}

func (l LocalBackend) Close() {}

///////////////////////////////////////////////////////////////////////////
// DryRunBackend

type SinkWriter struct{}

func (w *SinkWriter) Write(b []byte) (int, error) {
	return len(b), nil
}

type DryRunBackend struct {
	g StorageBackend // for read-only operations
}

func (d DryRunBackend) List(path string) (map[string]int64, error) {
	return d.g.List(path)
}

func (d DryRunBackend) OpenRead(path string) (io.ReadCloser, error) {
	return d.g.OpenRead(path)
}

func (d DryRunBackend) Store(path string, r io.Reader) (int64, error) {
	return io.Copy(&SinkWriter{}, r)
}

func (d DryRunBackend) StoreObject(path string, object any) (int64, error) {
	return encodeObject(&SinkWriter{}, object)
}

func (d DryRunBackend) LoadObject(path string, object any) error {
	return d.g.LoadObject(path, object)
}

func (d DryRunBackend) Delete(path string) error { return nil }

func (d DryRunBackend) Close() { d.g.Close() }

///////////////////////////////////////////////////////////////////////////
// GCSBackend

type GCSBackend struct {
	ctx    context.Context
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

func MakeGCSBackend(bucketName, prefix string) (StorageBackend, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}
	credsJSON := os.Getenv(CredentialsEnv)
	if credsJSON == "" {
		return nil, ErrNoCredentials
	}

	client, err := storage.NewClient(context.Background(), option.WithCredentialsJSON([]byte(credsJSON)))
	if err != nil {
		return nil, err
	}

	return &GCSBackend{
		ctx:    context.Background(),
		client: client,
		bucket: client.Bucket(bucketName),
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (g *GCSBackend) object(path string) string {
	if g.prefix == "" {
		return path
	}
	return g.prefix + "/" + path
}

func (g *GCSBackend) List(path string) (map[string]int64, error) {
	query := storage.Query{Projection: storage.ProjectionNoACL}
	if root := strings.Trim(g.object(path), "/"); root != "" {
		query.Prefix = root + "/"
	}

	m := make(map[string]int64)
	it := g.bucket.Objects(g.ctx, &query)
	for {
		if obj, err := it.Next(); err == iterator.Done {
			break
		} else if err != nil {
			return nil, err
		} else if !strings.HasSuffix(obj.Name, "/") { // skip ~folders
			name := obj.Name
			if g.prefix != "" {
				name = strings.TrimPrefix(name, g.prefix+"/")
			}
			m[name] = obj.Size
		}
	}
	return m, nil
}

func (g *GCSBackend) OpenRead(path string) (io.ReadCloser, error) {
	return g.bucket.Object(g.object(path)).NewReader(g.ctx)
}

func (g *GCSBackend) Store(path string, r io.Reader) (int64, error) {
	objw := g.bucket.Object(g.object(path)).NewWriter(g.ctx)
	n, err := io.Copy(objw, r)
	if err != nil {
		return n, err
	}
	return n, objw.Close()
}

func (g *GCSBackend) StoreObject(path string, object any) (int64, error) {
	objw := g.bucket.Object(g.object(path)).NewWriter(g.ctx)
	n, err := encodeObject(objw, object)
	if err != nil {
		return 0, err
	}
	return n, objw.Close()
}

func (g *GCSBackend) LoadObject(path string, object any) error {
	r, err := g.OpenRead(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return decodeObject(r, object)
}

func (g *GCSBackend) Delete(path string) error {
	return g.bucket.Object(g.object(path)).Delete(g.ctx)
}

func (g *GCSBackend) Close() { g.client.Close() }
