package wiki

import "github.com/rotisserie/eris"

var (
	// ErrPageNotFound indicates no page exists under the requested name.
	ErrPageNotFound = eris.New("page not found")
	// ErrPageExists is returned by Create when the name is already taken.
	ErrPageExists = eris.New("page already exists")
	// ErrInvalidPageName wraps validation failures for page names.
	ErrInvalidPageName = eris.New("invalid page name")
	// ErrInvalidContents wraps validation failures for submitted contents.
	ErrInvalidContents = eris.New("invalid page contents")
)
