package checkpointer

import (
	"fmt"
	"path/filepath"
)

// fileEnumerator enumerates filenames
type fileEnumerator struct {
	i      int
	dir    string
	prefix string
}

// filename returns the name of the next consecutive enumerated file
func (f *fileEnumerator) filename() string {
	f.i++
	return filepath.Join(f.dir, fmt.Sprintf("%v-%06d", f.prefix, f.i))
}

// FilenameEnumerator returns a function which will return paths in dir
// with a counter suffix. Each time the returned function is called the
// counter is one higher than on the previous call, starting at
// start + 1.
func FilenameEnumerator(start int, dir, prefix string) func() string {
	enum := fileEnumerator{i: start, dir: dir, prefix: prefix}

	return enum.filename
}
