package clipboard

import (
	"sync"

	"golang.design/x/clipboard"
)

var writeMu sync.Mutex

func Init() error {
	return clipboard.Init()
}

// WriteText performs a mutex-guarded clipboard write so concurrent results
// cannot interleave.
func WriteText(text string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// WriteImage places PNG-encoded bytes on the clipboard as an image.
func WriteImage(png []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

// ReadText returns the current clipboard text, empty when the clipboard
// holds none.
func ReadText() string {
	return string(clipboard.Read(clipboard.FmtText))
}
