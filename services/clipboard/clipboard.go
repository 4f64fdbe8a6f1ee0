package clipboardsvc

import (
	"errors"
	"sync"

	"github.com/atotto/clipboard"

	"github.com/trezcool/clubhub/core/checkin"
)

var ErrUnsupported = errors.New("clipboard not supported on this system")

// System writes to the OS clipboard (xclip/xsel/wl-copy, pbcopy or the Windows API).
type System struct{}

var _ checkin.Clipboard = System{} // interface compliance check

func NewSystem() System { return System{} }

func (System) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	return clipboard.WriteAll(text)
}

// Memory keeps copied texts in memory. Err, when set, is returned by every write.
type Memory struct {
	mu     sync.Mutex
	copied []string
	Err    error
}

var _ checkin.Clipboard = (*Memory)(nil)

func (m *Memory) WriteAll(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.copied = append(m.copied, text)
	return nil
}

// Last returns the last copied text.
func (m *Memory) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.copied) == 0 {
		return ""
	}
	return m.copied[len(m.copied)-1]
}
