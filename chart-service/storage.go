package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
)

var ErrChartNotFound = errors.New("chart not found")

var chartNamePattern = regexp.MustCompile(`^chart_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.png$`)

type StoredChart struct {
	Name      string
	Size      int64
	CreatedAt time.Time
}

// ChartStore persists rendered PNGs by file name.
type ChartStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	// List returns stored charts oldest first.
	List(ctx context.Context) ([]StoredChart, error)
}

func newChartName() string {
	return fmt.Sprintf("chart_%s.png", uuid.New().String())
}

func validChartName(name string) bool {
	return chartNamePattern.MatchString(name)
}

func sortOldestFirst(charts []StoredChart) {
	sort.Slice(charts, func(i, j int) bool {
		if charts[i].CreatedAt.Equal(charts[j].CreatedAt) {
			return charts[i].Name < charts[j].Name
		}
		return charts[i].CreatedAt.Before(charts[j].CreatedAt)
	})
}

type DiskStore struct {
	dir string
}

// NewDiskStore makes sure dir exists.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) path(name string) (string, error) {
	if !validChartName(name) {
		return "", ErrChartNotFound
	}
	return filepath.Join(s.dir, name), nil
}

func (s *DiskStore) Save(_ context.Context, name string, data []byte) error {
	location, err := s.path(name)
	if err != nil {
		return fmt.Errorf("invalid chart name %q", name)
	}
	if err := os.WriteFile(location, data, 0644); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}

func (s *DiskStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	location, err := s.path(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(location)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrChartNotFound
		}
		return nil, fmt.Errorf("failed to open chart: %w", err)
	}
	return file, nil
}

func (s *DiskStore) Delete(_ context.Context, name string) error {
	location, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(location); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrChartNotFound
		}
		return fmt.Errorf("failed to delete chart: %w", err)
	}
	return nil
}

func (s *DiskStore) List(_ context.Context) ([]StoredChart, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart directory: %w", err)
	}

	var charts []StoredChart
	for _, entry := range entries {
		if entry.IsDir() || !validChartName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		charts = append(charts, StoredChart{
			Name:      entry.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sortOldestFirst(charts)
	return charts, nil
}
