package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/boutique-admin/api/internal/services"
)

// Fixture is the YAML document accepted by the seed command.
type Fixture struct {
	Categories []CategoryFixture `yaml:"categories"`
	Brands     []BrandFixture    `yaml:"brands"`
	Products   []ProductFixture  `yaml:"products"`
}

// CategoryFixture is a category and its nested children.
type CategoryFixture struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Image       string            `yaml:"image"`
	SortOrder   *int              `yaml:"sortOrder"`
	Children    []CategoryFixture `yaml:"children"`
}

type BrandFixture struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Logo        string `yaml:"logo"`
	Website     string `yaml:"website"`
}

type VariantFixture struct {
	Size     string `yaml:"size"`
	Color    string `yaml:"color"`
	Quantity *int   `yaml:"quantity"`
}

// ProductFixture references its category by slash separated name path
// ("Women/Dresses") and its brand by name.
type ProductFixture struct {
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description"`
	Price        string           `yaml:"price"`
	ComparePrice string           `yaml:"comparePrice"`
	Category     string           `yaml:"category"`
	Brand        string           `yaml:"brand"`
	Images       []string         `yaml:"images"`
	Tags         []string         `yaml:"tags"`
	Featured     bool             `yaml:"featured"`
	IsNewIn      bool             `yaml:"isNewIn"`
	Variants     []VariantFixture `yaml:"variants"`
}

// LoadFixture reads and strictly decodes a fixture file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	return DecodeFixture(bytes.NewReader(data))
}

// DecodeFixture rejects unknown keys so typos in fixture files surface early.
func DecodeFixture(r io.Reader) (Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return Fixture{}, nil
		}
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	return fx, nil
}

// Summary counts what a seed run created and skipped.
type Summary struct {
	Categories int
	Brands     int
	Products   int
	Skipped    int
}

// Seeder loads fixtures through the services so records get the same
// validation, slugs and identifiers as API-created ones. Re-running a seed
// skips records that already exist.
type Seeder struct {
	categories services.CategoryService
	brands     services.BrandService
	products   services.ProductService
	logger     *zap.Logger

	categoryIDs map[string]string
	brandIDs    map[string]string
}

// NewSeeder constructs a Seeder.
func NewSeeder(categories services.CategoryService, brands services.BrandService, products services.ProductService, logger *zap.Logger) (*Seeder, error) {
	if categories == nil || brands == nil || products == nil {
		return nil, errors.New("seed: category, brand and product services are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		categories: categories,
		brands:     brands,
		products:   products,
		logger:     logger,
	}, nil
}

// Run applies the fixture. Categories are created parents first.
func (s *Seeder) Run(ctx context.Context, fx Fixture) (Summary, error) {
	var summary Summary
	if err := s.indexExisting(ctx); err != nil {
		return summary, err
	}

	for _, category := range fx.Categories {
		if err := s.seedCategory(ctx, category, nil, "", &summary); err != nil {
			return summary, err
		}
	}
	for _, brand := range fx.Brands {
		if err := s.seedBrand(ctx, brand, &summary); err != nil {
			return summary, err
		}
	}
	for i, product := range fx.Products {
		if err := s.seedProduct(ctx, product, &summary); err != nil {
			return summary, fmt.Errorf("products[%d] %q: %w", i, product.Name, err)
		}
	}
	return summary, nil
}

func (s *Seeder) indexExisting(ctx context.Context) error {
	s.categoryIDs = make(map[string]string)
	tree, err := s.categories.Tree(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	var walk func(nodes []services.Category, prefix string)
	walk = func(nodes []services.Category, prefix string) {
		for _, node := range nodes {
			path := joinPath(prefix, node.Name)
			s.categoryIDs[path] = node.ID
			walk(node.Children, path)
		}
	}
	walk(tree, "")

	s.brandIDs = make(map[string]string)
	page := services.Pagination{PageSize: 100}
	for {
		result, err := s.brands.List(ctx, services.BrandListFilter{Pagination: page})
		if err != nil {
			return fmt.Errorf("load brands: %w", err)
		}
		for _, brand := range result.Items {
			s.brandIDs[strings.ToLower(brand.Name)] = brand.ID
		}
		if result.NextPageToken == "" {
			return nil
		}
		page.PageToken = result.NextPageToken
	}
}

func (s *Seeder) seedCategory(ctx context.Context, fx CategoryFixture, parentID *string, prefix string, summary *Summary) error {
	path := joinPath(prefix, fx.Name)
	id, exists := s.categoryIDs[path]
	if exists {
		summary.Skipped++
	} else {
		created, err := s.categories.Create(ctx, services.UpsertCategoryCommand{
			Name:        strings.TrimSpace(fx.Name),
			Description: optional(fx.Description),
			ParentID:    parentID,
			Image:       optional(fx.Image),
			SortOrder:   fx.SortOrder,
		})
		if err != nil {
			return fmt.Errorf("category %q: %w", path, err)
		}
		id = created.ID
		s.categoryIDs[path] = id
		summary.Categories++
		s.logger.Info("seeded category", zap.String("path", path), zap.String("id", id))
	}

	for _, child := range fx.Children {
		if err := s.seedCategory(ctx, child, &id, path, summary); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedBrand(ctx context.Context, fx BrandFixture, summary *Summary) error {
	key := strings.ToLower(strings.TrimSpace(fx.Name))
	if _, ok := s.brandIDs[key]; ok {
		summary.Skipped++
		return nil
	}
	created, err := s.brands.Create(ctx, services.UpsertBrandCommand{
		Name:        strings.TrimSpace(fx.Name),
		Description: optional(fx.Description),
		Logo:        optional(fx.Logo),
		Website:     optional(fx.Website),
	})
	if err != nil {
		return fmt.Errorf("brand %q: %w", fx.Name, err)
	}
	s.brandIDs[key] = created.ID
	summary.Brands++
	s.logger.Info("seeded brand", zap.String("name", created.Name), zap.String("id", created.ID))
	return nil
}

func (s *Seeder) seedProduct(ctx context.Context, fx ProductFixture, summary *Summary) error {
	categoryID, ok := s.categoryIDs[normalisePath(fx.Category)]
	if !ok {
		return fmt.Errorf("unknown category %q", fx.Category)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(fx.Price))
	if err != nil {
		return fmt.Errorf("price %q: %w", fx.Price, err)
	}

	cmd := services.CreateProductCommand{
		Name:        strings.TrimSpace(fx.Name),
		Description: strings.TrimSpace(fx.Description),
		Price:       price,
		CategoryID:  categoryID,
		Images:      fx.Images,
		Tags:        fx.Tags,
		Featured:    fx.Featured,
		IsNewIn:     fx.IsNewIn,
	}
	if raw := strings.TrimSpace(fx.ComparePrice); raw != "" {
		compare, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("comparePrice %q: %w", raw, err)
		}
		cmd.ComparePrice = &compare
	}
	if name := strings.TrimSpace(fx.Brand); name != "" {
		brandID, ok := s.brandIDs[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("unknown brand %q", fx.Brand)
		}
		cmd.BrandID = &brandID
	}
	for _, variant := range fx.Variants {
		cmd.Variants = append(cmd.Variants, services.VariantInput{
			Size:     variant.Size,
			Color:    variant.Color,
			Quantity: variant.Quantity,
		})
	}

	detail, err := s.products.Create(ctx, cmd)
	if errors.Is(err, services.ErrProductConflict) {
		summary.Skipped++
		s.logger.Info("product already seeded", zap.String("name", cmd.Name))
		return nil
	}
	if err != nil {
		return err
	}
	summary.Products++
	s.logger.Info("seeded product",
		zap.String("id", detail.Product.ID),
		zap.String("sku", detail.Product.SKU),
		zap.Int("variants", len(detail.Product.Variants)),
	)
	return nil
}

func joinPath(prefix, name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func normalisePath(raw string) string {
	var path string
	for _, part := range strings.Split(raw, "/") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		path = joinPath(path, part)
	}
	return path
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
