package cas

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Kind classifies a name found in the backend.
type Kind string

const (
	KindBlock     Kind = "block"
	KindCatalog   Kind = "catalog"
	KindTemporary Kind = "temporary"
	KindUnknown   Kind = "unknown"
)

const (
	blockExt   = ".bin"
	catalogExt = ".cat"
	tempExt    = ".tmp"
)

var (
	objectPattern = regexp.MustCompile(`^[0-9a-f]+\.(bin|cat)$`)
	tempPattern   = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.tmp$`)
)

func blockName(d string) string   { return d + blockExt }
func catalogName(d string) string { return d + catalogExt }

// tempName returns a fresh staging name. uuid.NewString is lowercase, so
// the name stays inside the backend alphabet.
func tempName() string { return uuid.NewString() + tempExt }

// Classify reports what kind of object name is and, for blocks and
// catalogs, the digest it carries.
func (s *Store) Classify(name string) (Kind, string) {
	if len(name) == s.engine.HexLen()+len(blockExt) && objectPattern.MatchString(name) {
		d := name[:s.engine.HexLen()]
		if strings.HasSuffix(name, blockExt) {
			return KindBlock, d
		}
		return KindCatalog, d
	}
	if tempPattern.MatchString(name) {
		return KindTemporary, ""
	}
	return KindUnknown, ""
}
