// Package incremental decides whether a pipeline's inputs changed since its last
// successful run, by hashing the files its read patterns select.
package incremental

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/zeebo/blake3"

	"git.home.luguber.info/inful/docflow/internal/fsio"
	"git.home.luguber.info/inful/docflow/internal/module"
	"git.home.luguber.info/inful/docflow/internal/pipeline"
)

// FileDigest is the BLAKE3 digest of one input file.
type FileDigest struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// Signature captures everything that decides a pipeline's output: its shape
// (modules per phase, dependencies, flags, patterns), an optional salt such as a
// settings hash, and the digests of the input files.
type Signature struct {
	Pipeline     string              `json:"pipeline"`
	Modules      map[string][]string `json:"modules"`
	Dependencies []string            `json:"dependencies,omitempty"`
	Patterns     []string            `json:"patterns"`
	Isolated     bool                `json:"isolated,omitempty"`
	Salt         string              `json:"salt,omitempty"`
	Files        []FileDigest        `json:"files"`
}

// ComputeSignature hashes the files selected by the pipeline's read patterns.
func ComputeSignature(ctx context.Context, src fsio.Source, name string, p *pipeline.Pipeline, salt string, concurrency int) (*Signature, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline %q is nil", name)
	}

	sig := &Signature{
		Pipeline:     name,
		Modules:      make(map[string][]string, len(pipeline.Phases)),
		Dependencies: p.Dependencies(),
		Patterns:     p.ReadPatterns(),
		Isolated:     p.Isolated(),
		Salt:         salt,
	}
	slices.Sort(sig.Dependencies)
	for _, phase := range pipeline.Phases {
		for _, m := range p.Modules(phase) {
			sig.Modules[phase.String()] = append(sig.Modules[phase.String()], module.NameOf(m))
		}
	}

	files, err := src.Match(ctx, sig.Patterns...)
	if err != nil {
		return nil, err
	}
	digests, err := module.ParallelMap(ctx, concurrency, files, func(ctx context.Context, path string) (FileDigest, error) {
		data, err := src.ReadFile(ctx, path)
		if err != nil {
			return FileDigest{}, err
		}
		sum := blake3.Sum256(data)
		return FileDigest{Path: path, Hash: hex.EncodeToString(sum[:])}, nil
	})
	if err != nil {
		return nil, err
	}
	sig.Files = digests
	return sig, nil
}

// Encode returns the canonical JSON form. Map keys are sorted by encoding/json
// and files are already in path order, so equal signatures encode identically.
func (s *Signature) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal signature: %w", err)
	}
	return data, nil
}

// DecodeSignature parses a stored signature.
func DecodeSignature(data []byte) (*Signature, error) {
	var sig Signature
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, fmt.Errorf("unmarshal signature: %w", err)
	}
	return &sig, nil
}

// Diff returns the paths that were added, removed or modified between two signatures.
func Diff(prev, next *Signature) []string {
	old := make(map[string]string)
	if prev != nil {
		for _, f := range prev.Files {
			old[f.Path] = f.Hash
		}
	}
	var changed []string
	for _, f := range next.Files {
		if h, ok := old[f.Path]; !ok || h != f.Hash {
			changed = append(changed, f.Path)
		}
		delete(old, f.Path)
	}
	for p := range old {
		changed = append(changed, p)
	}
	slices.Sort(changed)
	return changed
}
