package extractor

import (
	"encoding/hex"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
	"lukechampine.com/blake3"

	"github.com/ternarybob/vigil/internal/models"
)

var alnumOnlyRe = regexp.MustCompile(`[^a-z0-9]+`)

// HashContent hashes normalized visible text. This is the primary
// change-detection fingerprint.
func HashContent(normalizedText string) string {
	sum := blake3.Sum256([]byte(normalizedText))
	return hex.EncodeToString(sum[:])
}

// HashStructure hashes the DOM outline signature. Elements render as
// "tag:depth" with sorted classes and id appended when present, joined
// with "|". Text changes leave this hash stable; layout changes move it.
func HashStructure(outline []models.DOMElement) string {
	parts := make([]string, 0, len(outline))
	for _, elem := range outline {
		var sb strings.Builder
		sb.WriteString(elem.Tag)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(elem.Depth))
		if len(elem.Classes) > 0 {
			classes := append([]string(nil), elem.Classes...)
			sort.Strings(classes)
			sb.WriteByte('.')
			sb.WriteString(strings.Join(classes, "."))
		}
		if elem.ID != "" {
			sb.WriteByte('#')
			sb.WriteString(elem.ID)
		}
		parts = append(parts, sb.String())
	}

	sum := blake2b.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// HashTextBlocks hashes the sorted set of significant text blocks, making
// the fingerprint insensitive to block reordering.
func HashTextBlocks(blocks []string) string {
	sorted := append([]string(nil), blocks...)
	sort.Strings(sorted)

	sum := blake2b.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}

// HashSemantic hashes text reduced to its alphanumeric skeleton, so
// punctuation and formatting churn does not register as change.
func HashSemantic(normalizedText string) string {
	collapsed := alnumOnlyRe.ReplaceAllString(strings.ToLower(normalizedText), "")
	sum := blake2b.Sum256([]byte(collapsed))
	return hex.EncodeToString(sum[:])
}
