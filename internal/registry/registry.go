package registry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danpasecinic/tamd/internal/reflect"
)

var (
	ErrRelativeIdentifier = errors.New("module id cannot be relative")
	ErrAlreadyDefined     = errors.New("module is already defined")
	ErrInvalidValue       = errors.New("module definition must be an object or a function")
)

type State int

const (
	StateRegistered State = iota
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Record struct {
	Name      string
	State     State
	Value     any
	DefinedAt time.Time
}

// Registry stores module records by name. It is not safe for concurrent use;
// the owning runtime serializes access.
type Registry struct {
	records map[string]*Record
	order   []string
	now     func() time.Time
}

func New(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		records: make(map[string]*Record),
		now:     now,
	}
}

func IsRelative(name string) bool {
	return strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../")
}

// Register creates the record for name. An invalid value still produces a
// record, returned together with an error wrapping ErrInvalidValue.
func (r *Registry) Register(name string, value any) (*Record, error) {
	if IsRelative(name) {
		return nil, fmt.Errorf("%w: %s", ErrRelativeIdentifier, name)
	}

	if _, exists := r.records[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyDefined, name)
	}

	rec := &Record{
		Name:      name,
		State:     StateRegistered,
		Value:     value,
		DefinedAt: r.now(),
	}

	var err error
	if reflect.Classify(value) == reflect.ShapeInvalid {
		rec.State = StateInvalid
		err = fmt.Errorf("%w: %s", ErrInvalidValue, name)
	}

	r.records[name] = rec
	r.order = append(r.order, name)
	return rec, err
}

func (r *Registry) Lookup(name string) (*Record, bool) {
	rec, exists := r.records[name]
	return rec, exists
}

func (r *Registry) Value(name string) (any, bool) {
	rec, exists := r.records[name]
	if !exists {
		return nil, false
	}
	return rec.Value, true
}

func (r *Registry) Has(name string) bool {
	_, exists := r.records[name]
	return exists
}

// Names returns record names in definition order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

func (r *Registry) Size() int {
	return len(r.records)
}

func (r *Registry) Clear() {
	r.records = make(map[string]*Record)
	r.order = nil
}
