// Package refid issues the public reference identifiers citizens use to track requests.
package refid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	DefaultPrefix = "REQ-"
	suffixSize    = 4
	alphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Generator builds ids of the form <prefix><base36 millis><4 random base36 chars>.
type Generator struct {
	Prefix string
	Now    func() time.Time
}

func (g Generator) prefix() string {
	if g.Prefix == "" {
		return DefaultPrefix
	}
	return g.Prefix
}

// New returns a fresh identifier. The suffix comes from crypto/rand.
func (g Generator) New() (string, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	suffix, err := gonanoid.Generate(alphabet, suffixSize)
	if err != nil {
		return "", fmt.Errorf("generate reference suffix: %w", err)
	}
	ts := strings.ToUpper(strconv.FormatInt(now().UnixMilli(), 36))
	return g.prefix() + ts + suffix, nil
}

// Valid reports whether id has the shape produced by New.
func (g Generator) Valid(id string) bool {
	p := g.prefix()
	if !strings.HasPrefix(id, p) {
		return false
	}
	return bodyPattern.MatchString(id[len(p):])
}

var bodyPattern = regexp.MustCompile(`^[0-9A-Z]{5,}$`)
