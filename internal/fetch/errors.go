package fetch

import (
	"errors"
	"fmt"

	"github.com/rescale/filequery/internal/catalog"
	"github.com/rescale/filequery/internal/constants"
)

var (
	// ErrIndexOutOfRange is returned by Select and ItemAt for indices outside
	// the valid range. It is the catalog's sentinel so callers can test either.
	ErrIndexOutOfRange = catalog.ErrIndexOutOfRange

	// ErrFetchFailed matches every *FetchFailedError.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrClosed is reported by fetches started after Close.
	ErrClosed = errors.New("fetch controller closed")
)

// FetchFailedError reports a remote store failure for one fetch.
// The previous result set is left untouched when this occurs.
type FetchFailedError struct {
	Index  int
	Label  string
	Reason error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("fetch failed for %q: %v", e.Label, e.Reason)
}

// Is lets errors.Is(err, ErrFetchFailed) match.
func (e *FetchFailedError) Is(target error) bool {
	return target == ErrFetchFailed
}

func (e *FetchFailedError) Unwrap() error {
	return e.Reason
}

// UserMessage is the transient notice a presentation layer shows.
func (e *FetchFailedError) UserMessage() string {
	return constants.MsgErrorRetrieval
}
