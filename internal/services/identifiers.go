package services

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	skuPrefix         = "SKU"
	orderNumberPrefix = "ORD"
	randomSuffixLen   = 6
	base36Alphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	colorPrefixLen    = 3
)

// Entity id prefixes.
const (
	categoryIDPrefix  = "cat_"
	brandIDPrefix     = "brd_"
	productIDPrefix   = "prd_"
	variantIDPrefix   = "var_"
	orderIDPrefix     = "ord_"
	orderItemIDPrefix = "itm_"
)

var (
	slugStripPattern  = regexp.MustCompile(`[^a-z0-9_\s-]`)
	slugSpacePattern  = regexp.MustCompile(`\s+`)
	slugHyphenPattern = regexp.MustCompile(`-+`)
)

// IdentifierGenerator produces the non-deterministic identifiers of the engine.
// Tests inject a fixed clock and random source to pin formats.
type IdentifierGenerator interface {
	// NewID returns a sortable unique id with the given type prefix.
	NewID(prefix string) string
	// ProductSKU returns SKU-<base36 time>-<6 random chars>.
	ProductSKU(productName string) string
	// OrderNumber returns ORD-<base36 time>-<6 random chars>.
	OrderNumber() string
}

// NewIdentifierGenerator builds a generator from a clock and a random source.
// Nil arguments default to time.Now and crypto/rand.
func NewIdentifierGenerator(clock func() time.Time, random io.Reader) IdentifierGenerator {
	if clock == nil {
		clock = time.Now
	}
	if random == nil {
		random = rand.Reader
	}
	return &identifierGenerator{
		clock:   clock,
		random:  random,
		entropy: ulid.Monotonic(random, 0),
	}
}

type identifierGenerator struct {
	mu      sync.Mutex
	clock   func() time.Time
	random  io.Reader
	entropy *ulid.MonotonicEntropy
}

func (g *identifierGenerator) NewID(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(g.clock()), g.entropy)
	return prefix + strings.ToLower(id.String())
}

func (g *identifierGenerator) ProductSKU(string) string {
	return g.stamped(skuPrefix)
}

func (g *identifierGenerator) OrderNumber() string {
	return g.stamped(orderNumberPrefix)
}

func (g *identifierGenerator) stamped(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	millis := g.clock().UnixMilli()
	stamp := strings.ToUpper(strconv.FormatInt(millis, 36))
	return fmt.Sprintf("%s-%s-%s", prefix, stamp, g.randomBase36(randomSuffixLen))
}

// randomBase36 draws n unbiased characters from the base36 alphabet.
func (g *identifierGenerator) randomBase36(n int) string {
	const limit = 252 // largest multiple of 36 below 256
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			panic(fmt.Sprintf("identifier generator: random source failed: %v", err))
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, base36Alphabet[int(b)%36])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}

// Slugify lowercases and trims name, strips everything but ASCII word
// characters, whitespace and hyphens, then replaces whitespace runs with a
// hyphen and collapses repeated hyphens. Slugify(Slugify(x)) == Slugify(x).
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugStripPattern.ReplaceAllString(s, "")
	s = slugSpacePattern.ReplaceAllString(s, "-")
	return slugHyphenPattern.ReplaceAllString(s, "-")
}

// VariantSKU appends the uppercased size and the first three letters of the
// uppercased color to the product SKU, each only when present. Colors sharing
// a three letter prefix collide.
func VariantSKU(productSKU, size, color string) string {
	var b strings.Builder
	b.WriteString(productSKU)
	if size = strings.TrimSpace(size); size != "" {
		b.WriteString("-")
		b.WriteString(strings.ToUpper(size))
	}
	if color = strings.TrimSpace(color); color != "" {
		runes := []rune(strings.ToUpper(color))
		if len(runes) > colorPrefixLen {
			runes = runes[:colorPrefixLen]
		}
		b.WriteString("-")
		b.WriteString(string(runes))
	}
	return b.String()
}
