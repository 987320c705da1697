package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/models"
)

// ClientPrefix folds accents, keeps letters, uppercases and pads the first
// three letters of name with X: "Éluard" → "ELU", "Ng" → "NGX".
func ClientPrefix(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	for _, r := range folded {
		if b.Len() == 3 {
			break
		}
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	for b.Len() < 3 {
		b.WriteByte('X')
	}
	return b.String()
}

// prefixSource is the name used for a client's reference prefix.
func prefixSource(c *models.Client) string {
	if strings.TrimSpace(c.Nom) != "" {
		return c.Nom
	}
	return c.RaisonSociale
}

// nextSequence returns max(existing sequence of year)+1. References are
// YEAR-SEQ-PREFIX; sequences wider than three digits stay parseable.
func nextSequence(ctx context.Context, tx *gorm.DB, year int) (int, error) {
	var refs []string
	if err := tx.WithContext(ctx).Model(&models.Dossier{}).
		Where("reference LIKE ?", fmt.Sprintf("%d-%%", year)).
		Pluck("reference", &refs).Error; err != nil {
		return 0, err
	}
	max := 0
	for _, ref := range refs {
		parts := strings.SplitN(ref, "-", 3)
		if len(parts) < 2 {
			continue
		}
		if n, err := strconv.Atoi(parts[1]); err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}

// FormatReference renders YEAR-SEQ-PREFIX with SEQ zero padded to three digits.
func FormatReference(year, seq int, prefix string) string {
	return fmt.Sprintf("%d-%03d-%s", year, seq, prefix)
}
