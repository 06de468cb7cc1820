package checkpointer

import (
	"fmt"
	"path/filepath"
	"time"
)

// FileTimer returns a function which returns paths in dir made of
// prefix and the number of nanoseconds since January 1, 1970
func FileTimer(dir, prefix string) func() string {
	return func() string {
		return filepath.Join(dir, fmt.Sprintf("%v-%v", prefix,
			time.Now().UnixNano()))
	}
}
