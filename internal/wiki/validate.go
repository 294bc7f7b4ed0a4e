package wiki

import (
	"strings"
	"unicode"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rotisserie/eris"
)

const (
	// MaxPageNameLength matches the size of the name column.
	MaxPageNameLength = 255
	// MaxContentsLength caps the stored markup at 512 KiB.
	MaxContentsLength = 512 << 10
)

// reservedNames are served by fixed routes and cannot be pages.
var reservedNames = map[string]struct{}{
	"healthz": {},
	"js":      {},
	"css":     {},
	"img":     {},
}

// ValidatePageName reports whether name can be used as a page key in URLs and storage.
func ValidatePageName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.RuneLength(1, MaxPageNameLength),
		validation.By(checkPageName),
	)
	if err != nil {
		return eris.Wrapf(ErrInvalidPageName, "%q: %s", name, err.Error())
	}
	return nil
}

// ValidateContents reports whether contents fit the stored column.
func ValidateContents(contents string) error {
	if err := validation.Validate(contents, validation.Length(0, MaxContentsLength)); err != nil {
		return eris.Wrapf(ErrInvalidContents, "%s", err.Error())
	}
	return nil
}

func checkPageName(value any) error {
	name, _ := value.(string)

	if !utf8.ValidString(name) {
		return validation.NewError("wiki.page_name.utf8", "must be valid UTF-8")
	}
	if strings.TrimSpace(name) != name {
		return validation.NewError("wiki.page_name.whitespace", "must not start or end with whitespace")
	}
	if strings.Contains(name, "/") {
		return validation.NewError("wiki.page_name.slash", "must not contain '/'")
	}
	if name == "." || name == ".." {
		return validation.NewError("wiki.page_name.dots", "must not be a relative path segment")
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return validation.NewError("wiki.page_name.control", "must not contain control characters")
	}
	if _, reserved := reservedNames[strings.ToLower(name)]; reserved {
		return validation.NewError("wiki.page_name.reserved", "is reserved")
	}

	return nil
}
