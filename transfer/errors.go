package transfer

import (
	"errors"
	"fmt"

	"github.com/leafsync/leafsync/internal/wire"
)

// errEarlyEnd signals that the server closed a chunk-fetch response stream
// before delivering every requested index (spec §4.E "Completion").
var errEarlyEnd = errors.New("chunk stream ended early")

func errAsProtocol(em wire.ErrorMsg) error {
	return fmt.Errorf("code=%d: %s", em.Code, em.Message)
}

func errUnexpectedTag(got wire.Tag) error {
	return fmt.Errorf("unexpected frame tag 0x%02x", got)
}
