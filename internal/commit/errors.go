package commit

import "github.com/pkg/errors"

var (
	ErrHalted         = errors.New("committer halted")
	ErrStale          = errors.New("certificate at or below the persisted round")
	ErrNoCertificates = errors.New("no certificate source configured")
)
