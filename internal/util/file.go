package util

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// WriteAtomic writes contents to filename via a temporary file and
// rename, so readers never observe a partial write. Filesystems that
// cannot rename over the target get a plain-write retry.
func WriteAtomic(filename string, contents []byte) error {
	if err1 := atomic.WriteFile(filename, bytes.NewReader(contents)); err1 != nil {
		if err2 := os.WriteFile(filename, contents, 0666); err2 != nil {
			return fmt.Errorf("%s: %s; on non-atomic retry: %s", filename, err1, err2)
		}
	}
	return nil
}
