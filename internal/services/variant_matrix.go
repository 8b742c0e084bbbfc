package services

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/boutique-admin/api/internal/domain"
)

// ErrVariantProductWithoutSKU guards the ordering invariant that identifier
// derivation runs before a product's variants are built.
var ErrVariantProductWithoutSKU = errors.New("variant: product has no sku")

// VariantPlan is the set of writes that turns a stored matrix into a submitted one.
type VariantPlan struct {
	Insert []ProductVariant
	Update []ProductVariant
	Delete []ProductVariant
}

// Empty reports whether applying the plan would not change anything.
func (p VariantPlan) Empty() bool {
	return len(p.Insert) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// VariantSizes is the fixed size set a variant may carry, smallest first.
var VariantSizes = []string{"XS", "S", "M", "L", "XL", "XXL"}

// canonicalSize upper-cases size; canonicalColor lower-cases color and
// collapses inner whitespace. Matrix keys are compared in canonical form.
func canonicalSize(size string) string {
	return strings.ToUpper(strings.TrimSpace(size))
}

func canonicalColor(color string) string {
	return strings.ToLower(strings.Join(strings.Fields(color), " "))
}

func normalizeVariantInput(in VariantInput) VariantInput {
	in.Size = canonicalSize(in.Size)
	in.Color = canonicalColor(in.Color)
	return in
}

func variantKeyOf(in VariantInput) domain.VariantKey {
	in = normalizeVariantInput(in)
	return domain.VariantKey{Size: in.Size, Color: in.Color}
}

func storedVariantKey(variant ProductVariant) domain.VariantKey {
	return domain.VariantKey{Size: canonicalSize(variant.Size), Color: canonicalColor(variant.Color)}
}

// checkVariantMatrix records a violation for every size outside VariantSizes
// and for every (size, color) pair that appears more than once in inputs.
// Pairs are compared case-insensitively.
func checkVariantMatrix(v *violations, inputs []VariantInput) {
	seen := make(map[domain.VariantKey]int, len(inputs))
	for i, in := range inputs {
		key := variantKeyOf(in)
		if key.Size != "" && !slices.Contains(VariantSizes, key.Size) {
			v.add(fmt.Sprintf("variants[%d].size", i), "oneof",
				"must be one of "+strings.Join(VariantSizes, ", "))
			continue
		}
		if first, ok := seen[key]; ok {
			v.add(fmt.Sprintf("variants[%d]", i), "unique",
				fmt.Sprintf("duplicates the size/color pair of variants[%d]", first))
			continue
		}
		seen[key] = i
	}
}

// BuildVariants derives a fresh variant row for each requested tuple.
func BuildVariants(product Product, inputs []VariantInput, ids IdentifierGenerator, now time.Time) ([]ProductVariant, error) {
	if strings.TrimSpace(product.SKU) == "" {
		return nil, ErrVariantProductWithoutSKU
	}
	variants := make([]ProductVariant, 0, len(inputs))
	for _, in := range inputs {
		variants = append(variants, newVariant(product, in, ids.NewID(variantIDPrefix), now))
	}
	return variants, nil
}

func newVariant(product Product, in VariantInput, id string, now time.Time) ProductVariant {
	in = normalizeVariantInput(in)
	variant := ProductVariant{
		ID:        id,
		ProductID: product.ID,
		Size:      in.Size,
		Color:     in.Color,
		SKU:       VariantSKU(product.SKU, in.Size, in.Color),
		Images:    []string{},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Color != "" {
		variant.ColorHex = ColorHex(in.Color)
	}
	if in.Quantity != nil {
		variant.Stock = *in.Quantity
	}
	return variant
}

// PlanVariantReconcile diffs the stored matrix against the submitted one by
// (size, color) key. Matching rows keep their id and are refreshed in place,
// new keys are inserted and keys no longer submitted are deleted. An empty
// submission yields an empty plan.
func PlanVariantReconcile(product Product, existing []ProductVariant, inputs []VariantInput, ids IdentifierGenerator, now time.Time) (VariantPlan, error) {
	if len(inputs) == 0 {
		return VariantPlan{}, nil
	}
	if strings.TrimSpace(product.SKU) == "" {
		return VariantPlan{}, ErrVariantProductWithoutSKU
	}

	stored := make(map[domain.VariantKey]ProductVariant, len(existing))
	for _, variant := range existing {
		stored[storedVariantKey(variant)] = variant
	}

	var plan VariantPlan
	submitted := make(map[domain.VariantKey]struct{}, len(inputs))
	for _, in := range inputs {
		key := variantKeyOf(in)
		submitted[key] = struct{}{}
		current, ok := stored[key]
		if !ok {
			plan.Insert = append(plan.Insert, newVariant(product, in, ids.NewID(variantIDPrefix), now))
			continue
		}
		next := newVariant(product, in, current.ID, current.CreatedAt)
		next.Price = current.Price
		if len(current.Images) > 0 {
			next.Images = current.Images
		}
		next.UpdatedAt = now
		plan.Update = append(plan.Update, next)
	}
	for _, variant := range existing {
		if _, keep := submitted[storedVariantKey(variant)]; !keep {
			plan.Delete = append(plan.Delete, variant)
		}
	}
	return plan, nil
}

// ComputeVariantStats aggregates the active variants of a product. Sizes and
// colors are de-duplicated in first-seen order with empty values dropped.
func ComputeVariantStats(variants []ProductVariant) VariantStats {
	stats := VariantStats{AvailableSizes: []string{}, AvailableColors: []string{}}
	sizes := map[string]struct{}{}
	colors := map[string]struct{}{}
	for _, variant := range variants {
		if !variant.IsActive {
			continue
		}
		stats.TotalStock += variant.Stock
		if variant.Size != "" {
			if _, ok := sizes[variant.Size]; !ok {
				sizes[variant.Size] = struct{}{}
				stats.AvailableSizes = append(stats.AvailableSizes, variant.Size)
			}
		}
		if variant.Color != "" {
			if _, ok := colors[variant.Color]; !ok {
				colors[variant.Color] = struct{}{}
				stats.AvailableColors = append(stats.AvailableColors, variant.Color)
			}
		}
	}
	return stats
}
