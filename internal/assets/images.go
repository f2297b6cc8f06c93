/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrRemoteSource is returned for http(s) sources; the editing core does no network I/O.
var ErrRemoteSource = errors.New("remote image sources are not supported")

// Image is a decoded image header.
type Image struct {
	Src    string
	Width  float64
	Height float64
	Format string
}

// ImageDecoder resolves image sources (file paths, file:// URLs and base64 data URIs)
// to their natural size. Relative paths are resolved against Root. Results are cached.
type ImageDecoder struct {
	Root string

	mu    sync.Mutex
	cache map[string]Image
}

func NewImageDecoder(root string) *ImageDecoder {
	return &ImageDecoder{Root: root, cache: make(map[string]Image)}
}

// LoadImage decodes the header of src.
func (d *ImageDecoder) LoadImage(ctx context.Context, src string) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	d.mu.Lock()
	if img, ok := d.cache[src]; ok {
		d.mu.Unlock()
		return img, nil
	}
	d.mu.Unlock()

	rc, err := d.open(src)
	if err != nil {
		return Image{}, err
	}
	defer rc.Close()
	cfg, format, err := image.DecodeConfig(rc)
	if err != nil {
		return Image{}, fmt.Errorf("decode %s: %w", shortSrc(src), err)
	}
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	img := Image{Src: src, Width: float64(cfg.Width), Height: float64(cfg.Height), Format: format}
	d.mu.Lock()
	d.cache[src] = img
	d.mu.Unlock()
	return img, nil
}

// Forget drops src from the cache, e.g. after the file changed.
func (d *ImageDecoder) Forget(src string) {
	d.mu.Lock()
	delete(d.cache, src)
	d.mu.Unlock()
}

func (d *ImageDecoder) open(src string) (io.ReadCloser, error) {
	switch {
	case src == "":
		return nil, fmt.Errorf("empty image source")
	case strings.HasPrefix(src, "data:"):
		data, err := decodeDataURI(src)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return nil, fmt.Errorf("%w: %s", ErrRemoteSource, src)
	case strings.HasPrefix(src, "file://"):
		u, err := url.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", src, err)
		}
		src = u.Path
	}
	path := src
	if !filepath.IsAbs(path) && d.Root != "" {
		path = filepath.Join(d.Root, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	return f, nil
}

// decodeDataURI accepts "data:[<mediatype>][;base64],<payload>".
func decodeDataURI(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data uri")
	}
	if strings.HasSuffix(meta, ";base64") {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("data uri: %w", err)
		}
		return b, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data uri: %w", err)
	}
	return []byte(s), nil
}

func shortSrc(src string) string {
	if len(src) > 48 {
		return src[:48] + "..."
	}
	return src
}
