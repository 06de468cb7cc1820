package network

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	topologyFile = "model.json"
	weightsFile  = "weights.bin"
)

// manifestEntry locates one learnable in the flat weights buffer
type manifestEntry struct {
	Name   string `json:"name"`
	Shape  []int  `json:"shape"`
	Offset int    `json:"offset"`
}

// Save writes the Net to dir as a topology document, model.json, and a
// gob encoded weights buffer, weights.bin. Both files are written to
// temporary files first and renamed into place.
func Save(n *Net, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save: create model dir: %w", err)
	}

	arch, err := json.Marshal(n.arch)
	if err != nil {
		return fmt.Errorf("save: encode architecture: %w", err)
	}

	var weights []float64
	manifest := make([]manifestEntry, 0, len(n.Learnables()))
	for _, node := range n.Learnables() {
		data, err := floats(node.Value())
		if err != nil {
			return fmt.Errorf("save: %v: %w", node.Name(), err)
		}
		manifest = append(manifest, manifestEntry{
			Name:   node.Name(),
			Shape:  append([]int(nil), node.Shape()...),
			Offset: len(weights),
		})
		weights = append(weights, data...)
	}

	topo, err := json.MarshalIndent(topology{
		Kind:         n.arch.Kind(),
		Architecture: arch,
		Weights:      manifest,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("save: encode topology: %w", err)
	}

	if err := writeAtomic(filepath.Join(dir, topologyFile), func(f *os.File) error {
		_, err := f.Write(topo)
		return err
	}); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	if err := writeAtomic(filepath.Join(dir, weightsFile), func(f *os.File) error {
		return gob.NewEncoder(f).Encode(weights)
	}); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	return nil
}

// Load reads a Net saved with Save and builds it with the given batch
// size. Every stored parameter must match the rebuilt architecture.
func Load(dir string, batch int) (*Net, error) {
	data, err := os.ReadFile(filepath.Join(dir, topologyFile))
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	var topo topology
	if err := json.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("load: decode topology: %w", err)
	}
	arch, err := decodeArchitecture(topo.Kind, topo.Architecture)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	f, err := os.Open(filepath.Join(dir, weightsFile))
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	defer f.Close()

	var weights []float64
	if err := gob.NewDecoder(f).Decode(&weights); err != nil {
		return nil, fmt.Errorf("load: decode weights: %w", err)
	}

	net, err := New(arch, batch, nil)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	if len(topo.Weights) != len(net.Learnables()) {
		return nil, &ShapeError{Op: "load", WantCount: len(net.Learnables()),
			HaveCount: len(topo.Weights)}
	}
	for _, entry := range topo.Weights {
		node, ok := net.param(entry.Name)
		if !ok {
			return nil, fmt.Errorf("load: unknown parameter %v", entry.Name)
		}
		if !node.Shape().Eq(entry.Shape) {
			return nil, &ShapeError{Op: "load", Name: entry.Name,
				Want: node.Shape(), Have: entry.Shape}
		}

		size := node.Shape().TotalSize()
		if entry.Offset < 0 || entry.Offset+size > len(weights) {
			return nil, fmt.Errorf("load: parameter %v outside weights "+
				"buffer", entry.Name)
		}
		dst, ok := node.Value().Data().([]float64)
		if !ok {
			return nil, fmt.Errorf("load: parameter %v is not float64",
				entry.Name)
		}
		copy(dst, weights[entry.Offset:entry.Offset+size])
	}

	return net, nil
}

// Exists returns whether a saved Net is stored in dir
func Exists(dir string) (bool, error) {
	for _, name := range []string{topologyFile, weightsFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		} else if err != nil {
			return false, fmt.Errorf("exists: %w", err)
		}
	}
	return true, nil
}

// Remove deletes a saved Net from dir. The directory itself is removed
// only if it is left empty.
func Remove(dir string) error {
	for _, name := range []string{topologyFile, weightsFile} {
		err := os.Remove(filepath.Join(dir, name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove: %w", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		os.Remove(dir)
	}
	return nil
}

// writeAtomic writes a file through a temporary file in the same
// directory which is renamed over path once write succeeds
func writeAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %v: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %v: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %v: %w", path, err)
	}
	return nil
}
