package filter

import (
	"io"
	"log/slog"
	"reflect"
	"time"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/compiler"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/functions"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

type options struct {
	ambient    any
	hasAmbient bool
	table      *functions.Table
	clock      func() time.Time
	logger     *slog.Logger
}

type Option func(*options)

// WithContext supplies the value referenced by `$`.
func WithContext(value any) Option {
	return func(o *options) {
		o.ambient = value
		o.hasAmbient = true
	}
}

func WithFunctions(t *functions.Table) Option {
	return func(o *options) {
		o.table = t
	}
}

// WithClock replaces the time source of now() and utcNow().
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) options {
	o := options{
		table:  functions.Default(),
		clock:  time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for i := range opts {
		opts[i](&o)
	}
	return o
}

func (o options) compilerOptions() []compiler.Option {
	result := []compiler.Option{
		compiler.WithFunctions(o.table),
		compiler.WithClock(o.clock),
	}
	if o.hasAmbient {
		t := reflect.TypeOf(o.ambient)
		if t == nil {
			t = typeinfo.TypeNull
		}
		result = append(result, compiler.WithContextType(t))
	}
	return result
}
