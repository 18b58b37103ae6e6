// Package payload reads and writes the configuration handed from the
// orchestrator to a batch child process. The format is Java-style
// properties, one key=value per line.
package payload

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/magiconair/properties"

	"github.com/ethereum-optimism/infra/op-launcher/types"
)

// DefaultFilename is read by a batch child when no payload path is given.
const DefaultFilename = "launch.properties"

const (
	KeyTestClasses  = "testclasses"
	KeyListeners    = "listeners"
	KeyPrintSummary = "printsummary"
	KeyParallelMode = "parallelmode"
	KeyPoolType     = "pool.type"
	KeyPoolThreads  = "pool.threads"
)

const separator = ","

//go:embed launch.properties
var bundled []byte

// Payload is the subset of a run configuration that crosses the process
// boundary into a batch child.
type Payload struct {
	Units        []types.TestUnit
	Listeners    []string
	PrintSummary bool
	ParallelMode types.ParallelMode
	Pool         types.PoolPolicy
	PoolSet      bool
}

// FromConfiguration builds the payload for the given units and configuration.
func FromConfiguration(units []types.TestUnit, cfg types.RunConfiguration) Payload {
	return Payload{
		Units:        append([]types.TestUnit(nil), units...),
		Listeners:    append([]string(nil), cfg.Listeners...),
		PrintSummary: cfg.PrintSummary,
		ParallelMode: cfg.ParallelMode,
		Pool:         cfg.Pool,
		PoolSet:      cfg.PoolSet,
	}
}

// RunConfiguration returns the engine configuration carried by the payload.
// Orchestrator-only settings keep their zero values.
func (p Payload) RunConfiguration() types.RunConfiguration {
	pool := p.Pool
	if !p.PoolSet {
		pool = types.PoolPolicy{Kind: types.PoolDefault, Threads: 1}
	}
	return types.RunConfiguration{
		ParallelMode: p.ParallelMode,
		Pool:         pool,
		PoolSet:      p.PoolSet,
		Isolation:    types.IsolationBatch,
		Listeners:    append([]string(nil), p.Listeners...),
		PrintSummary: p.PrintSummary,
	}
}

func newProperties() *properties.Properties {
	props := properties.NewProperties()
	props.DisableExpansion = true
	props.WriteSeparator = "="
	return props
}

// Encode converts the payload into properties. Listeners are omitted when
// empty and pool keys when the policy was not set explicitly.
func (p Payload) Encode() *properties.Properties {
	props := newProperties()
	props.MustSet(KeyTestClasses, types.JoinUnits(p.Units))
	if len(p.Listeners) > 0 {
		props.MustSet(KeyListeners, strings.Join(p.Listeners, separator))
	}
	props.MustSet(KeyPrintSummary, strconv.FormatBool(p.PrintSummary))
	mode := p.ParallelMode
	if mode == "" {
		mode = types.ParallelNone
	}
	props.MustSet(KeyParallelMode, mode.String())
	if p.PoolSet {
		kind := p.Pool.Kind
		if kind == "" {
			kind = types.PoolDefault
		}
		props.MustSet(KeyPoolType, string(kind))
		props.MustSet(KeyPoolThreads, strconv.Itoa(p.Pool.Threads))
	}
	return props
}

// Decode converts properties into a payload. A missing testclasses key is
// reported as ErrConfigurationMissing. Unknown parallel modes and pool types
// fall back to none and default.
func Decode(props *properties.Properties) (Payload, error) {
	classes, ok := props.Get(KeyTestClasses)
	if !ok {
		return Payload{}, fmt.Errorf("%w: %s", ErrConfigurationMissing, KeyTestClasses)
	}
	units, err := types.ParseUnits(classes)
	if err != nil {
		return Payload{}, fmt.Errorf("invalid %s: %w", KeyTestClasses, err)
	}

	p := Payload{
		Units:        units,
		PrintSummary: props.GetString(KeyPrintSummary, "false") == "true",
		ParallelMode: types.ParseParallelMode(props.GetString(KeyParallelMode, string(types.ParallelNone))),
	}

	if listeners, ok := props.Get(KeyListeners); ok {
		for _, name := range strings.Split(listeners, separator) {
			if name = strings.TrimSpace(name); name != "" {
				p.Listeners = append(p.Listeners, name)
			}
		}
	}

	// an absent pool.type keeps classes/methods parallel on the default pool
	poolType, typeSet := props.Get(KeyPoolType)
	p.PoolSet = typeSet
	p.Pool = types.PoolPolicy{Kind: types.ParsePoolKind(poolType), Threads: 1}
	if raw, ok := props.Get(KeyPoolThreads); ok && strings.TrimSpace(raw) != "" {
		threads, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Payload{}, fmt.Errorf("invalid %s %q: %w", KeyPoolThreads, raw, err)
		}
		p.Pool.Threads = threads
	}

	return p, nil
}

// Write writes the payload in properties format.
func Write(w io.Writer, p Payload) error {
	_, err := p.Encode().Write(w, properties.UTF8)
	return err
}

// Read parses a payload from r without applying bundled defaults.
func Read(r io.Reader) (Payload, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return Payload{}, err
	}
	props, err := load(buf)
	if err != nil {
		return Payload{}, err
	}
	return Decode(props)
}

// WriteTemp writes the payload to a new file in dir (os.TempDir when empty)
// and returns its path. The caller removes the file.
func WriteTemp(dir string, p Payload) (string, error) {
	f, err := os.CreateTemp(dir, "op-launcher-*.properties")
	if err != nil {
		return "", &IOError{Path: dir, Op: "create", Err: err}
	}
	if err := Write(f, p); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", &IOError{Path: f.Name(), Op: "write", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", &IOError{Path: f.Name(), Op: "close", Err: err}
	}
	return f.Name(), nil
}

// Load reads the bundled defaults and overlays the payload file at path when
// it exists. A missing or directory path leaves the defaults untouched.
func Load(path string) (Payload, error) {
	props, err := Merged(path)
	if err != nil {
		return Payload{}, err
	}
	return Decode(props)
}

// Merged returns the bundled defaults overlaid with the file at path.
func Merged(path string) (*properties.Properties, error) {
	props, err := load(bundled)
	if err != nil {
		return nil, fmt.Errorf("bundled defaults: %w", err)
	}
	if path == "" {
		path = DefaultFilename
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return props, nil
	case err != nil:
		return nil, &IOError{Path: path, Op: "stat", Err: err}
	case info.IsDir():
		return props, nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Path: path, Op: "read", Err: err}
	}
	overlay, err := load(buf)
	if err != nil {
		return nil, &IOError{Path: path, Op: "parse", Err: err}
	}
	props.Merge(overlay)
	return props, nil
}

func load(buf []byte) (*properties.Properties, error) {
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	return loader.LoadBytes(bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf")))
}
