// Package refid issues the short tracking codes citizens use to follow a complaint.
//
// A code is a two-letter department code followed by six symbols from a
// 32-symbol alphabet without 0, 1, I and O, e.g. "WR7K3MZQ", displayed as "WR-7K3MZQ".
package refid

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/BerylCAtieno/unitydesk-api/internal/models"
)

const (
	SafeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	SuffixLength = 6
	Length       = 2 + SuffixLength
	MaxAttempts  = 100
	Separator    = "-"
)

var pattern = regexp.MustCompile(`^[A-Z]{2}[2-9A-HJ-NP-Z]{6}$`)

// Generator draws codes. The zero value is not usable; use New or Default.
type Generator struct {
	alphabet    string
	maxAttempts int
	randIndex   func(n int) int
	now         func() time.Time
}

type Option func(*Generator)

// WithAlphabet narrows the random alphabet. The timestamp fallback always uses SafeAlphabet.
func WithAlphabet(alphabet string) Option {
	return func(g *Generator) { g.alphabet = alphabet }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func WithMaxAttempts(n int) Option {
	return func(g *Generator) { g.maxAttempts = n }
}

func New(opts ...Option) *Generator {
	g := &Generator{
		alphabet:    SafeAlphabet,
		maxAttempts: MaxAttempts,
		randIndex:   cryptoIndex,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var defaultGenerator = New()

// Generate issues a code for department that is not in existing.
func Generate(department string, existing []string) string {
	return defaultGenerator.Generate(department, existing)
}

func (g *Generator) Generate(department string, existing []string) string {
	prefix := models.DepartmentCode(department)
	taken := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		taken[Normalize(id)] = struct{}{}
	}

	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		code := prefix + g.randomSuffix()
		if _, ok := taken[code]; !ok {
			return code
		}
	}

	// Timestamp fallback: terminates because taken is finite.
	ts := uint64(g.now().UnixNano())
	for {
		code := prefix + encodeSuffix(ts)
		if _, ok := taken[code]; !ok {
			return code
		}
		ts++
	}
}

func (g *Generator) randomSuffix() string {
	var b strings.Builder
	b.Grow(SuffixLength)
	for i := 0; i < SuffixLength; i++ {
		b.WriteByte(g.alphabet[g.randIndex(len(g.alphabet))])
	}
	return b.String()
}

// encodeSuffix writes the low 30 bits of v in base 32 over SafeAlphabet.
func encodeSuffix(v uint64) string {
	buf := make([]byte, SuffixLength)
	for i := SuffixLength - 1; i >= 0; i-- {
		buf[i] = SafeAlphabet[v%32]
		v /= 32
	}
	return string(buf)
}

func cryptoIndex(n int) int {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("refid: crypto/rand failed: " + err.Error())
	}
	return int(idx.Int64())
}

// IsValid reports whether code is a well-formed, undecorated reference ID.
func IsValid(code string) bool {
	return pattern.MatchString(code)
}

// Format inserts the display separator after the department code.
func Format(code string) string {
	if len(code) != Length {
		return code
	}
	return code[:2] + Separator + code[2:]
}

// Normalize undoes Format and common typing noise (case, spaces, hyphens).
func Normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, Separator, "")
	return strings.ReplaceAll(s, " ", "")
}
