package config_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/confdb/config"
	"github.com/jrife/confdb/storage/driver"
	"github.com/jrife/confdb/storage/drivers/memory"
	"github.com/jrife/confdb/storage/identifier"
)

var owner = identifier.Owner{Name: "Economy", UniqueID: "1234"}

// countingDriver counts the writes made through the driver interface
type countingDriver struct {
	driver.Driver
	sets int32
}

func (d *countingDriver) Set(ctx context.Context, id identifier.Identifier, value interface{}) error {
	atomic.AddInt32(&d.sets, 1)

	return d.Driver.Set(ctx, id, value)
}

func newRegistry() (*config.Registry, *countingDriver) {
	d := &countingDriver{Driver: memory.New(memory.Config{})}

	return config.NewRegistry(config.RegistryConfig{Driver: d}), d
}

func newConfig(t *testing.T, opts ...config.ConfigOption) *config.Config {
	registry, _ := newRegistry()

	t.Cleanup(func() {
		registry.Close()
	})

	return registry.Config(owner, opts...)
}

func mustRegister(t *testing.T, conf *config.Config, category string, fields map[string]interface{}) {
	t.Helper()

	if err := conf.Register(category, fields); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}
}

func mustValue(t *testing.T, group *config.Group, name string) *config.Value {
	t.Helper()

	value, err := group.Value(name)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return value
}

func mustGroup(t *testing.T, group *config.Group, name string) *config.Group {
	t.Helper()

	child, err := group.Group(name)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return child
}

func mustArray(t *testing.T, group *config.Group, name string) *config.Array {
	t.Helper()

	array, err := group.Array(name)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return array
}

func TestRegister(t *testing.T) {
	testCases := map[string]struct {
		fields   []map[string]interface{}
		defaults map[string]interface{}
		err      error
	}{
		"nested-by-separator": {
			fields:   []map[string]interface{}{{"foo__bar": 1, "foo__baz": "x"}},
			defaults: map[string]interface{}{"foo": map[string]interface{}{"bar": int64(1), "baz": "x"}},
		},
		"nested-literal": {
			fields:   []map[string]interface{}{{"foo": map[string]interface{}{"bar": 1}}, {"foo__baz": []string{"a"}}},
			defaults: map[string]interface{}{"foo": map[string]interface{}{"bar": int64(1), "baz": []interface{}{"a"}}},
		},
		"nested-literal-keys": {
			fields:   []map[string]interface{}{{"channels": map[int]interface{}{123: map[string]interface{}{"bad-key": true}}}},
			defaults: map[string]interface{}{"channels": map[string]interface{}{"123": map[string]interface{}{"bad-key": true}}},
		},
		"overwrite": {
			fields:   []map[string]interface{}{{"foo": 1}, {"foo": 2.5}},
			defaults: map[string]interface{}{"foo": 2.5},
		},
		"nil-default": {
			fields:   []map[string]interface{}{{"foo": nil}},
			defaults: map[string]interface{}{"foo": nil},
		},
		"value-then-group": {
			fields:   []map[string]interface{}{{"foo": 1}, {"foo__bar": 1}},
			defaults: map[string]interface{}{"foo": int64(1)},
			err:      config.ErrSchemaConflict,
		},
		"group-then-value": {
			fields:   []map[string]interface{}{{"foo": map[string]interface{}{}}, {"foo": true}},
			defaults: map[string]interface{}{"foo": map[string]interface{}{}},
			err:      config.ErrSchemaConflict,
		},
		"invalid-name": {
			fields:   []map[string]interface{}{{"foo bar": 1}},
			defaults: map[string]interface{}{},
			err:      config.ErrInvalidField,
		},
		"empty-part": {
			fields:   []map[string]interface{}{{"foo____bar": 1}},
			defaults: map[string]interface{}{},
			err:      config.ErrInvalidField,
		},
		"failed-registration-is-not-applied": {
			fields:   []map[string]interface{}{{"a": 1}, {"b": 1, "a__c": 2}},
			defaults: map[string]interface{}{"a": int64(1)},
			err:      config.ErrSchemaConflict,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			conf := newConfig(t)
			var err error

			for _, fields := range testCase.fields {
				err = conf.RegisterGlobal(fields)
			}

			if !errors.Is(err, testCase.err) {
				t.Fatalf("expected err to be %#v, got %#v", testCase.err, err)
			}

			if diff := cmp.Diff(testCase.defaults, conf.Defaults(identifier.Global)); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestRegistryCachesConfigs(t *testing.T) {
	registry, _ := newRegistry()
	a := registry.Config(owner, config.WithForceRegistration())
	b := registry.Config(owner)
	other := registry.Config(identifier.Owner{Name: "Core", UniqueID: "0"})

	if a != b {
		t.Fatalf("expected the same config for the same owner")
	}

	if a == other {
		t.Fatalf("expected different configs for different owners")
	}

	if !b.ForceRegistration() {
		t.Fatalf("expected options of the first call to stick")
	}

	configs := registry.Configs()

	if len(configs) != 2 || configs[0] != other || configs[1] != a {
		t.Fatalf("expected configs ordered by owner, got %#v", configs)
	}
}

func TestCustomCategory(t *testing.T) {
	conf := newConfig(t)

	if _, err := conf.Custom("Bank", "a", "b", "c"); !errors.Is(err, config.ErrCustomCategory) {
		t.Fatalf("expected ErrCustomCategory before registration, got %#v", err)
	}

	if err := conf.RegisterCustomCategory("Bank", 3); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := conf.RegisterCustomCategory("Bank", 3); err != nil {
		t.Fatalf("expected registering the same arity again to succeed, got %#v", err)
	}

	if err := conf.RegisterCustomCategory("Bank", 2); !errors.Is(err, config.ErrCustomCategory) {
		t.Fatalf("expected ErrCustomCategory on an arity change, got %#v", err)
	}

	for _, arity := range []int{0, -1} {
		if err := conf.RegisterCustomCategory("Other", arity); !errors.Is(err, config.ErrCustomCategory) {
			t.Fatalf("expected ErrCustomCategory for arity %d, got %#v", arity, err)
		}
	}

	if err := conf.RegisterCustomCategory(identifier.Guild, 1); !errors.Is(err, config.ErrCustomCategory) {
		t.Fatalf("expected ErrCustomCategory for a built-in category, got %#v", err)
	}

	if _, err := conf.Custom("Bank", "a", "b", "c", "d"); !errors.Is(err, config.ErrCustomCategory) {
		t.Fatalf("expected ErrCustomCategory for too many primary key parts, got %#v", err)
	}

	mustRegister(t, conf, "Bank", map[string]interface{}{"balance": 10})
	ctx := context.Background()
	account, err := conf.Custom("Bank", "a", "b", "c")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := mustValue(t, account, "balance").Increment(ctx, 5); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	partial, err := conf.Custom("Bank", "a")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	all, err := partial.All(ctx)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	expected := map[string]interface{}{"b": map[string]interface{}{"c": map[string]interface{}{"balance": int64(15)}}}

	if diff := cmp.Diff(expected, all); diff != "" {
		t.Fatal(diff)
	}

	if diff := cmp.Diff(map[string]int{"Bank": 3}, conf.Customs()); diff != "" {
		t.Fatal(diff)
	}
}

func TestClearScoping(t *testing.T) {
	ctx := context.Background()
	conf := newConfig(t)
	mustRegister(t, conf, identifier.Member, map[string]interface{}{"foo": true})

	for _, member := range [][2]string{{"1", "10"}, {"2", "20"}} {
		if err := mustValue(t, conf.Member(member[0], member[1]), "foo").Set(ctx, false); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}
	}

	if err := conf.Member("1", "10").Clear(ctx); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	testCases := map[string]struct {
		guild, user string
		expected    interface{}
	}{
		"cleared": {guild: "1", user: "10", expected: true},
		"kept":    {guild: "2", user: "20", expected: false},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			value, err := mustValue(t, conf.Member(testCase.guild, testCase.user), "foo").Get(ctx)

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if value != testCase.expected {
				t.Fatalf("expected %#v, got %#v", testCase.expected, value)
			}
		})
	}
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	conf := newConfig(t)
	mustRegister(t, conf, identifier.Global, map[string]interface{}{"foo": 1})
	mustRegister(t, conf, identifier.Guild, map[string]interface{}{"bar": 1})
	foo := mustValue(t, conf.Global(), "foo")

	for _, guild := range []string{"1", "2"} {
		if err := mustValue(t, conf.Guild(guild), "bar").Set(ctx, 2); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}
	}

	if err := foo.Set(ctx, 2); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := conf.ClearAllCategory(ctx, identifier.Guild); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	guilds, err := conf.Category(identifier.Guild)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if all, err := guilds.All(ctx); err != nil || len(all) != 0 {
		t.Fatalf("expected no guilds, got %#v, %#v", all, err)
	}

	if value, _ := foo.Get(ctx); value != int64(2) {
		t.Fatalf("expected global data to survive, got %#v", value)
	}

	if err := conf.ClearAll(ctx); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if value, _ := foo.Get(ctx); value != int64(1) {
		t.Fatalf("expected the default after ClearAll, got %#v", value)
	}

	if err := conf.ClearAllCategory(ctx, "Unknown"); !errors.Is(err, config.ErrCustomCategory) {
		t.Fatalf("expected ErrCustomCategory, got %#v", err)
	}
}

func TestForceRegistration(t *testing.T) {
	ctx := context.Background()
	strict := newConfig(t, config.WithForceRegistration())
	mustRegister(t, strict, identifier.Global, map[string]interface{}{"foo": 1})

	if _, err := strict.Global().Child("bar"); !errors.Is(err, config.ErrUnregistered) {
		t.Fatalf("expected ErrUnregistered, got %#v", err)
	}

	if _, err := strict.Global().Value("foo"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	loose := newConfig(t)
	bar := mustValue(t, loose.Global(), "bar")

	if value, err := bar.Get(ctx); err != nil || value != nil {
		t.Fatalf("expected unregistered values to read as nil, got %#v, %#v", value, err)
	}

	if err := bar.Set(ctx, "dynamic"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if value, _ := bar.Get(ctx); value != "dynamic" {
		t.Fatalf("expected dynamic data to be stored, got %#v", value)
	}
}

func TestRegistryMigrate(t *testing.T) {
	ctx := context.Background()
	registry, _ := newRegistry()
	conf := registry.Config(owner)

	if err := conf.RegisterCustomCategory("Bank", 2); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	account, _ := conf.Custom("Bank", "a", "b")

	if err := account.SetRaw(ctx, 100, "balance"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := mustValue(t, conf.Guild("1"), "prefix").Set(ctx, "!"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	destination := memory.New(memory.Config{})

	if err := registry.Migrate(ctx, destination); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	migrated := config.NewRegistry(config.RegistryConfig{Driver: destination}).Config(owner)

	if err := migrated.RegisterCustomCategory("Bank", 2); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	migratedAccount, _ := migrated.Custom("Bank", "a", "b")

	if balance, err := migratedAccount.GetRaw(ctx, "balance"); err != nil || balance != int64(100) {
		t.Fatalf("expected 100, got %#v, %#v", balance, err)
	}

	if prefix, err := mustValue(t, migrated.Guild("1"), "prefix").Get(ctx); err != nil || prefix != "!" {
		t.Fatalf("expected \"!\", got %#v, %#v", prefix, err)
	}
}
