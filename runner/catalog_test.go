package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-launcher/types"
)

func TestCatalog_Register(t *testing.T) {
	tests := []struct {
		name    string
		unit    string
		methods []Method
		wantErr bool
	}{
		{name: "valid unit", unit: "a.B", methods: []Method{{Name: "m", Fn: pass}}},
		{name: "empty unit name", unit: "  ", methods: []Method{{Name: "m", Fn: pass}}, wantErr: true},
		{name: "empty method name", unit: "a.C", methods: []Method{{Fn: pass}}, wantErr: true},
		{name: "duplicate method", unit: "a.D", methods: []Method{{Name: "m", Fn: pass}, {Name: "m", Fn: pass}}, wantErr: true},
		{name: "method without body", unit: "a.E", methods: []Method{{Name: "m"}}, wantErr: true},
		{name: "ignored method without body", unit: "a.F", methods: []Method{{Name: "m", Ignore: true}}},
	}

	c := NewCatalog()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Register(tt.unit, tt.methods...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, c.Register("a.B", Method{Name: "m", Fn: pass}), "re-registering a unit fails")
	assert.Panics(t, func() { c.MustRegister("a.B") })
}

func TestCatalog_ResolveAndRun(t *testing.T) {
	c := NewCatalog()
	c.MustRegister("pkg.Unit",
		Method{Name: "second", Fn: pass},
		Method{Name: "first", Fn: fail},
		Method{Name: "third", Fn: func(context.Context) error { return ErrIgnored }},
		Method{Name: "fourth", Ignore: true},
	)

	u, err := c.Resolve(context.Background(), "pkg.Unit")
	require.NoError(t, err)
	assert.Equal(t, "pkg.Unit", u.Name())
	assert.Equal(t, []string{"second", "first", "third", "fourth"}, u.Methods())

	assert.Equal(t, types.TestStatusPass, u.RunMethod(context.Background(), "second").Status)
	failed := u.RunMethod(context.Background(), "first")
	assert.Equal(t, types.TestStatusFail, failed.Status)
	assert.EqualError(t, failed.Err, "assertion failed")
	assert.Equal(t, types.TestStatusIgnore, u.RunMethod(context.Background(), "third").Status)
	assert.Equal(t, types.TestStatusIgnore, u.RunMethod(context.Background(), "fourth").Status)
	assert.Equal(t, types.TestStatusFail, u.RunMethod(context.Background(), "nope").Status)

	_, err = c.Resolve(context.Background(), "pkg.Missing")
	assert.ErrorIs(t, err, ErrUnitNotFound)
}

func TestMultiResolver(t *testing.T) {
	first := NewCatalog()
	first.MustRegister("a", Method{Name: "m", Fn: pass})
	second := NewCatalog()
	second.MustRegister("a", Method{Name: "other", Fn: pass})
	second.MustRegister("b", Method{Name: "m", Fn: pass})

	broken := errors.New("disk on fire")
	failing := ResolverFunc(func(_ context.Context, name string) (Unit, error) {
		if name == "c" {
			return nil, broken
		}
		return nil, ErrUnitNotFound
	})

	m := MultiResolver{first, failing, second}

	u, err := m.Resolve(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"m"}, u.Methods(), "first resolver wins")

	u, err = m.Resolve(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "b", u.Name())

	_, err = m.Resolve(context.Background(), "c")
	assert.ErrorIs(t, err, broken)

	_, err = m.Resolve(context.Background(), "d")
	assert.ErrorIs(t, err, ErrUnitNotFound)
}
