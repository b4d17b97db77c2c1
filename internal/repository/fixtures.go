package repository

import (
	"blindbox-draw/internal/model"
	apperrors "blindbox-draw/pkg/app_errors"
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures/demo.yaml
var demoFixtures []byte

// Fixtures 沙盒的初始資料，可由 YAML 載入
type Fixtures struct {
	Series []SeriesFixture `yaml:"series"`
	Boxes  []BoxFixture    `yaml:"boxes"`
}

type SeriesFixture struct {
	ID           string         `yaml:"id"`
	Name         string         `yaml:"name"`
	Cover        string         `yaml:"cover"`
	Price        string         `yaml:"price"`
	DiscountRate string         `yaml:"discount_rate"`
	Styles       []StyleFixture `yaml:"styles"`
}

type StyleFixture struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Hidden bool   `yaml:"hidden"`
}

type BoxFixture struct {
	ID       string   `yaml:"id"`
	SeriesID string   `yaml:"series_id"`
	Slots    []string `yaml:"slots"`
	Sold     int      `yaml:"sold"`
}

// DemoFixtures 內建的示範資料
func DemoFixtures() (*Fixtures, error) {
	return parseFixtures(demoFixtures)
}

func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseFixtures(data)
}

func parseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

// Records 轉成 model，並檢查價格與已售格數
func (f *Fixtures) Records() ([]*model.SeriesRecord, []*model.BoxDefinition, error) {
	series := make([]*model.SeriesRecord, 0, len(f.Series))
	for _, s := range f.Series {
		price, err := decimal.NewFromString(s.Price)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: series %s price %q", apperrors.ErrInvalidInput, s.ID, s.Price)
		}
		rate := decimal.NewFromInt(1)
		if s.DiscountRate != "" {
			if rate, err = decimal.NewFromString(s.DiscountRate); err != nil {
				return nil, nil, fmt.Errorf("%w: series %s discount %q", apperrors.ErrInvalidInput, s.ID, s.DiscountRate)
			}
		}
		record := &model.SeriesRecord{
			Detail:       model.SeriesDetail{ID: model.ID(s.ID), Name: s.Name, Cover: s.Cover},
			Price:        price,
			DiscountRate: rate,
		}
		if !record.Quote().IsValid() {
			return nil, nil, fmt.Errorf("%w: series %s pricing out of range", apperrors.ErrInvalidInput, s.ID)
		}
		for _, st := range s.Styles {
			record.Detail.Styles = append(record.Detail.Styles, model.Style{ID: model.ID(st.ID), Name: st.Name, Hidden: st.Hidden})
		}
		series = append(series, record)
	}

	boxes := make([]*model.BoxDefinition, 0, len(f.Boxes))
	for _, b := range f.Boxes {
		if b.Sold < 0 || b.Sold > len(b.Slots) {
			return nil, nil, fmt.Errorf("%w: box %s sold %d of %d", apperrors.ErrInvalidInput, b.ID, b.Sold, len(b.Slots))
		}
		box := &model.BoxDefinition{
			ID:        model.ID(b.ID),
			SeriesID:  model.ID(b.SeriesID),
			Slots:     make([]model.ID, len(b.Slots)),
			SoldCount: b.Sold,
		}
		for i, s := range b.Slots {
			box.Slots[i] = model.ID(s)
		}
		boxes = append(boxes, box)
	}
	return series, boxes, nil
}

// Seed 寫入初始資料；已存在的資料不會被覆蓋
func Seed(ctx context.Context, seriesRepo SeriesRepository, boxRepo StockBoxRepository, f *Fixtures) error {
	series, boxes, err := f.Records()
	if err != nil {
		return err
	}
	for _, s := range series {
		if err := seriesRepo.Create(ctx, s); err != nil {
			return fmt.Errorf("seed series %s: %w", s.Detail.ID, err)
		}
	}
	for _, b := range boxes {
		if err := boxRepo.Create(ctx, b); err != nil {
			return fmt.Errorf("seed box %s: %w", b.ID, err)
		}
	}
	return nil
}
