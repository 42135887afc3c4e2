package featurebank

import (
	"log/slog"
	"runtime"

	"github.com/k-tonal/featurebank/codec"
	"github.com/k-tonal/featurebank/extract"
	"github.com/k-tonal/featurebank/internal/fs"
	"github.com/k-tonal/featurebank/resource"
	"github.com/k-tonal/featurebank/store"
)

// DefaultStoreExt is the extension appended to a source path to name its
// per-source store.
const DefaultStoreExt = ".fbk"

type options struct {
	roots         []string
	files         []string
	extensions    []string
	extractor     extract.Extractor
	workers       int
	memoryLimit   int64
	ioLimit       int64
	lenient       bool
	removeSources bool
	storeExt      string
	encoding      store.Encoding
	codec         codec.Codec
	fsys          fs.FileSystem
	logger        *Logger
}

// Option configures a build Pipeline.
type Option func(*options)

// WithRoots adds directories to walk recursively for source files.
func WithRoots(roots ...string) Option {
	return func(o *options) {
		o.roots = append(o.roots, roots...)
	}
}

// WithFiles adds explicit source files, bypassing the extension filter.
func WithFiles(files ...string) Option {
	return func(o *options) {
		o.files = append(o.files, files...)
	}
}

// WithExtensions sets the file extensions accepted while walking roots.
// Defaults to walk.DefaultExtensions.
func WithExtensions(exts ...string) Option {
	return func(o *options) {
		o.extensions = exts
	}
}

// WithExtractor sets the extraction function applied to every source.
// Defaults to the STFT extractor with its default parameters.
func WithExtractor(e extract.Extractor) Option {
	return func(o *options) {
		if e != nil {
			o.extractor = e
		}
	}
}

// WithWorkers bounds how many sources are extracted concurrently and how
// many scatter writes are in flight. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMemoryLimit bounds the total bytes of feature data held in memory at
// once during scatter. Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIOLimit throttles scatter writes to the given bytes per second.
// Zero means unthrottled.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithLenient excludes sources that fail extraction from the aggregate
// instead of failing the whole build. Failures are still reported in the
// Result. The default is strict: any extraction failure fails the build.
func WithLenient(lenient bool) Option {
	return func(o *options) {
		o.lenient = lenient
	}
}

// WithRemoveSources deletes per-source stores after the aggregate has been
// fully written. Deletion never happens on a partial build.
func WithRemoveSources(remove bool) Option {
	return func(o *options) {
		o.removeSources = remove
	}
}

// WithStoreExt sets the extension used for per-source store files.
func WithStoreExt(ext string) Option {
	return func(o *options) {
		if ext != "" {
			o.storeExt = ext
		}
	}
}

// WithCompression sets the encoding of dense datasets in per-source
// stores. The aggregate store always uses raw encoding, since compressed
// datasets cannot be range-written.
func WithCompression(enc store.Encoding) Option {
	return func(o *options) {
		o.encoding = enc
	}
}

// WithCodec configures the codec used for side tables and attributes.
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithFileSystem overrides the file system used for store writes and
// source removal. Used by tests for fault injection.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fsys = fsys
		}
	}
}

// WithLogger configures structured logging. Pass nil to disable.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		workers:   runtime.GOMAXPROCS(0),
		storeExt:  DefaultStoreExt,
		encoding:  store.Raw,
		codec:     codec.Default,
		fsys:      fs.Default,
		logger:    NoopLogger(),
		extractor: extract.NewSTFT(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o *options) controller() *resource.Controller {
	return resource.NewController(resource.Config{
		MaxWorkers:         int64(o.workers),
		MemoryLimitBytes:   o.memoryLimit,
		IOLimitBytesPerSec: o.ioLimit,
	})
}

func (o *options) storeOptions() []store.Option {
	return []store.Option{
		store.WithCodec(o.codec),
		store.WithFileSystem(o.fsys),
	}
}
