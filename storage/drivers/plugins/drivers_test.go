package plugins_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/confdb/storage/driver"
	"github.com/jrife/confdb/storage/identifier"
	"github.com/jrife/confdb/storage/drivers/plugins"
	"github.com/jrife/confdb/utils/locks"
)

var (
	economy = identifier.Owner{Name: "Economy", UniqueID: "1234"}
	core    = identifier.Owner{Name: "Core", UniqueID: "0"}
)

func global(owner identifier.Owner) identifier.Identifier {
	return identifier.New(owner, identifier.Global, 0)
}

func member(owner identifier.Owner, parts ...string) identifier.Identifier {
	return identifier.New(owner, identifier.Member, 2).WithPrimaryKey(parts...)
}

type tempDriverBuilder func(t *testing.T) driver.Driver

func builder(plugin driver.Plugin) tempDriverBuilder {
	return func(t *testing.T) driver.Driver {
		d, err := plugin.NewTempDriver()

		if err != nil {
			t.Fatalf("could not build a %s driver: %s", plugin.Name(), err.Error())
		}

		t.Cleanup(func() { d.Close() })

		return d
	}
}

func mustSet(t *testing.T, d driver.Driver, id identifier.Identifier, value interface{}) {
	t.Helper()

	if err := d.Set(context.Background(), id, value); err != nil {
		t.Fatalf("could not set %s: %s", id, err.Error())
	}
}

func mustGet(t *testing.T, d driver.Driver, id identifier.Identifier) interface{} {
	t.Helper()

	value, err := d.Get(context.Background(), id)

	if err != nil {
		t.Fatalf("could not get %s: %s", id, err.Error())
	}

	return value
}

func list(values ...interface{}) []interface{} {
	return values
}

func bound(n int) *int {
	return &n
}

func TestDrivers(t *testing.T) {
	pluginManager := plugins.NewPluginManager()

	for _, plugin := range pluginManager.Plugins() {
		t.Run(plugin.Name(), driverTest(builder(plugin)))
	}
}

func driverTest(builder tempDriverBuilder) func(t *testing.T) {
	return func(t *testing.T) {
		t.Run("get-set-clear", func(t *testing.T) { testGetSetClear(builder, t) })
		t.Run("clear-last-instance", func(t *testing.T) { testClearLastInstance(builder, t) })
		t.Run("floats", func(t *testing.T) { testFloats(builder, t) })
		t.Run("isolation", func(t *testing.T) { testIsolation(builder, t) })
		t.Run("schema-conflict", func(t *testing.T) { testSchemaConflict(builder, t) })
		t.Run("partial-primary-key", func(t *testing.T) { testPartialPrimaryKey(builder, t) })
		t.Run("increment", func(t *testing.T) { testIncrement(builder, t) })
		t.Run("toggle", func(t *testing.T) { testToggle(builder, t) })
		t.Run("lists", func(t *testing.T) { testLists(builder, t) })
		t.Run("contains", func(t *testing.T) { testContains(builder, t) })
		t.Run("export-import", func(t *testing.T) { testExportImport(builder, t) })
		t.Run("migrate", func(t *testing.T) { testMigrate(builder, t) })
		t.Run("closed", func(t *testing.T) { testClosed(builder, t) })
	}
}

func testGetSetClear(builder tempDriverBuilder, t *testing.T) {
	d := builder(t)
	ctx := context.Background()
	id := global(economy).WithField("bank", "name")

	if _, err := d.Get(ctx, id); !errors.Is(err, driver.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %#v", err)
	}

	mustSet(t, d, id, "Central")

	if diff := cmp.Diff(interface{}("Central"), mustGet(t, d, id)); diff != "" {
		t.Fatal(diff)
	}

	if diff := cmp.Diff(interface{}(map[string]interface{}{"name": "Central"}), mustGet(t, d, global(economy).WithField("bank"))); diff != "" {
		t.Fatal(diff)
	}

	mustSet(t, d, global(economy).WithField("ids"), map[int]bool{1: true})

	if diff := cmp.Diff(interface{}(map[string]interface{}{"1": true}), mustGet(t, d, global(economy).WithField("ids"))); diff != "" {
		t.Fatal(diff)
	}

	if err := d.Clear(ctx, id); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := d.Clear(ctx, id); err != nil {
		t.Fatalf("expected clearing twice to succeed, got %#v", err)
	}

	if _, err := d.Get(ctx, id); !errors.Is(err, driver.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %#v", err)
	}

	if err := d.Clear(ctx, global(core).WithField("never", "set")); err != nil {
		t.Fatalf("expected clearing an absent owner to succeed, got %#v", err)
	}
}

func testClearLastInstance(builder tempDriverBuilder, t *testing.T) {
	d := builder(t)
	ctx := context.Background()

	mustSet(t, d, member(economy, "1", "10").WithField("balance"), int64(5))

	if err := d.Clear(ctx, member(economy, "1", "10")); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	for _, id := range []identifier.Identifier{member(economy, "1"), member(economy)} {
		if _, err := d.Get(ctx, id); !errors.Is(err, driver.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for %s, got %#v", id, err)
		}
	}

	owners, err := d.Owners(ctx)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if len(owners) != 0 {
		t.Fatalf("expected no owners, got %#v", owners)
	}

	data, err := d.Export(ctx, economy, nil)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if len(data) != 0 {
		t.Fatalf("expected nothing to export, got %#v", data)
	}

	// A cleared field leaves its instance in place.
	mustSet(t, d, member(economy, "1", "10").WithField("balance"), int64(5))

	if err := d.Clear(ctx, member(economy, "1", "10").WithField("balance")); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff(interface{}(map[string]interface{}{}), mustGet(t, d, member(economy, "1", "10"))); diff != "" {
		t.Fatal(diff)
	}
}

func testFloats(builder tempDriverBuilder, t *testing.T) {
	d := builder(t)

	mustSet(t, d, global(economy).WithField("rate"), 2.0)
	mustSet(t, d, member(economy, "1", "10").WithField("history"), list(2.0, int64(2), 0.5))

	if diff := cmp.Diff(interface{}(2.0), mustGet(t, d, global(economy).WithField("rate"))); diff != "" {
		t.Fatal(diff)
	}

	if diff := cmp.Diff(interface{}(list(2.0, int64(2), 0.5)), mustGet(t, d, member(economy, "1", "10").WithField("history"))); diff != "" {
		t.Fatal(diff)
	}
}

func testIsolation(builder tempDriverBuilder, t *testing.T) {
	d := builder(t)
	id := global(economy).WithField("items")
	input := map[string]interface{}{"list": []interface{}{int64(1)}}

	mustSet(t, d, id, input)
	input["list"].([]interface{})[0] = int64(2)
	output := mustGet(t, d, id)
	output.(map[string]interface{})["list"] = nil

	expected := map[string]interface{}{"list": []interface{}{int64(1)}}

	if diff := cmp.Diff(interface{}(expected), mustGet(t, d, id)); diff != "" {
		t.Fatal(diff)
	}
}

func testSchemaConflict(builder tempDriverBuilder, t *testing.T) {
	d := builder(t)
	mustSet(t, d, global(economy).WithField("foo"), int64(1))

	if err := d.Set(context.Background(), global(economy).WithField("foo", "bar"), true); !errors.Is(err, driver.ErrSchemaConflict) {
		t.Fatalf("expected ErrSchemaConflict, got %#v", err)
	}

	if diff := cmp.Diff(interface{}(int64(1)), mustGet(t, d, global(economy).WithField("foo"))); diff != "" {
		t.Fatal(diff)
	}
}

func testPartialPrimaryKey(builder tempDriverBuilder, t *testing.T) {
	d := builder(t)
	ctx := context.Background()

	mustSet(t, d, member(economy, "1", "10").WithField("foo"), false)
	mustSet(t, d, member(economy, "1", "11").WithField("foo"), true)
	mustSet(t, d, member(economy, "2", "20").WithField("foo"), false)

	expected := map[string]interface{}{
		"10": map[string]interface{}{"foo": false},
		"11": map[string]interface{}{"foo": true},
	}

	if diff := cmp.Diff(interface{}(expected), mustGet(t, d, member(economy, "1"))); diff != "" {
		t.Fatal(diff)
	}

	if err := d.Clear(ctx, member(economy, "1", "10")); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := d.Get(ctx, member(economy, "1", "10")); !errors.Is(err, driver.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %#v", err)
	}

	if diff := cmp.Diff(interface{}(false), mustGet(t, d, member(economy, "2", "20").WithField("foo"))); diff != "" {
		t.Fatal(diff)
	}

	mustSet(t, d, member(economy, "3"), map[string]interface{}{"30": map[string]interface{}{"foo": true}})

	if diff := cmp.Diff(interface{}(true), mustGet(t, d, member(economy, "3", "30").WithField("foo"))); diff != "" {
		t.Fatal(diff)
	}

	if err := d.Set(ctx, member(economy, "4"), "scalar"); !errors.Is(err, driver.ErrSchemaConflict) {
		t.Fatalf("expected ErrSchemaConflict, got %#v", err)
	}

	if err := d.Clear(ctx, member(economy)); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := d.Get(ctx, member(economy)); !errors.Is(err, driver.ErrNotFound) {
		t.Fatalf("expected the whole category to be cleared, got %#v", err)
	}
}

func testIncrement(builder tempDriverBuilder, t *testing.T) {
	d := builder(t)
	ctx := context.Background()
	id := global(economy).WithField("counter")
	lock := locks.New()

	var wg sync.WaitGroup

	for i := 0; i < 25; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := d.Increment(ctx, id, 1, 0, lock); err != nil {
				t.Errorf("increment failed: %s", err.Error())
			}
		}()
	}

	wg.Wait()

	if diff := cmp.Diff(interface{}(int64(25)), mustGet(t, d, id)); diff != "" {
		t.Fatal(diff)
	}

	result, err := d.Increment(ctx, id, -0.5, 0, lock)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if result != 24.5 {
		t.Fatalf("expected 24.5, got %#v", result)
	}

	mustSet(t, d, id, nil)

	if _, err := d.Increment(ctx, id, 1, 0, lock); !errors.Is(err, driver.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %#v", err)
	}
}

func testToggle(builder tempDriverBuilder, t *testing.T) {
	d := builder(t)
	ctx := context.Background()
	id := global(economy).WithField("enabled")

	for _, expected := range []bool{true, false, true} {
		result, err := d.Toggle(ctx, id, false, nil)

		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		if result != expected {
			t.Fatalf("expected %v, got %v", expected, result)
		}
	}

	mustSet(t, d, id, "yes")

	if _, err := d.Toggle(ctx, id, false, nil); !errors.Is(err, driver.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %#v", err)
	}
}

func testLists(builder tempDriverBuilder, t *testing.T) {
	d := builder(t)
	ctx := context.Background()
	id := global(economy).WithField("foo")

	steps := []struct {
		items  []interface{}
		opts   driver.ListOptions
		result []interface{}
	}{
		{items: list(1, 2), result: list(int64(1), int64(2))},
		{items: list(-1, 0), opts: driver.ListOptions{Prepend: true}, result: list(int64(-1), int64(0), int64(1), int64(2))},
		{items: list(3, 4), opts: driver.ListOptions{MaxLength: bound(5)}, result: list(int64(0), int64(1), int64(2), int64(3), int64(4))},
		{items: list(-3, -2), opts: driver.ListOptions{MaxLength: bound(3), Prepend: true}, result: list(int64(-3), int64(-2), int64(0))},
	}

	for _, step := range steps {
		result, err := d.Extend(ctx, id, step.items, step.opts, nil)

		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		if diff := cmp.Diff(step.result, result); diff != "" {
			t.Fatal(diff)
		}

		if diff := cmp.Diff(interface{}(step.result), mustGet(t, d, id)); diff != "" {
			t.Fatal(diff)
		}
	}

	inserted := global(economy).WithField("inserted")
	opts := driver.ListOptions{Default: list(3)}

	for _, step := range []struct {
		index     int
		item      interface{}
		maxLength *int
		result    []interface{}
	}{
		{index: 0, item: 5, result: list(int64(5), int64(3))},
		{index: -1, item: 2, result: list(int64(5), int64(2), int64(3))},
		{index: 1, item: 4, maxLength: bound(3), result: list(int64(5), int64(4), int64(2))},
		{index: 0, item: 1, maxLength: bound(0), result: []interface{}{}},
	} {
		opts.MaxLength = step.maxLength
		result, err := d.Insert(ctx, inserted, step.index, step.item, opts, nil)

		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		if diff := cmp.Diff(step.result, result); diff != "" {
			t.Fatal(diff)
		}
	}

	words := global(economy).WithField("words")
	mustSet(t, d, words, list("bar", "baz", "foobar"))

	if i, err := d.Index(ctx, words, "baz"); err != nil || i != 1 {
		t.Fatalf("expected 1, got %d, %#v", i, err)
	}

	if _, err := d.Index(ctx, words, "bang"); !errors.Is(err, driver.ErrValueNotInList) {
		t.Fatalf("expected ErrValueNotInList, got %#v", err)
	}

	if _, err := d.Index(ctx, global(economy).WithField("missing"), "bang"); !errors.Is(err, driver.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %#v", err)
	}

	if v, err := d.At(ctx, words, -1); err != nil || v != "foobar" {
		t.Fatalf("expected foobar, got %#v, %#v", v, err)
	}

	for _, index := range []int{3, -4} {
		if _, err := d.At(ctx, words, index); !errors.Is(err, driver.ErrIndexOutOfRange) {
			t.Fatalf("expected ErrIndexOutOfRange for %d, got %#v", index, err)
		}
	}

	if err := d.SetAt(ctx, words, -1, "bav", nil, nil); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := d.SetAt(ctx, words, 3, "bav", nil, nil); !errors.Is(err, driver.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %#v", err)
	}

	if diff := cmp.Diff(interface{}(list("bar", "baz", "bav")), mustGet(t, d, words)); diff != "" {
		t.Fatal(diff)
	}

	mustSet(t, d, words, nil)

	if _, err := d.Extend(ctx, words, list(1), driver.ListOptions{}, nil); !errors.Is(err, driver.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %#v", err)
	}

	if _, err := d.At(ctx, words, 0); !errors.Is(err, driver.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %#v", err)
	}
}

func testContains(builder tempDriverBuilder, t *testing.T) {
	d := builder(t)
	ctx := context.Background()

	mustSet(t, d, global(economy).WithField("foo"), false)
	mustSet(t, d, identifier.New(economy, identifier.Guild, 1).WithPrimaryKey("100").WithField("foo"), true)
	mustSet(t, d, global(economy).WithField("list"), list("bar"))
	mustSet(t, d, global(economy).WithField("bar"), nil)

	testCases := map[string]struct {
		id       identifier.Identifier
		item     interface{}
		contains bool
		err      error
	}{
		"key present":      {id: global(economy), item: "foo", contains: true},
		"key absent":       {id: global(economy), item: "baz", contains: false},
		"instance present": {id: identifier.New(economy, identifier.Guild, 1), item: 100, contains: true},
		"instance absent":  {id: identifier.New(economy, identifier.Guild, 1), item: 101, contains: false},
		"list member":      {id: global(economy).WithField("list"), item: "bar", contains: true},
		"list non member":  {id: global(economy).WithField("list"), item: "baz", contains: false},
		"null":             {id: global(economy).WithField("bar"), item: 1, err: driver.ErrTypeMismatch},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			contains, err := d.Contains(ctx, testCase.id, testCase.item)

			if !errors.Is(err, testCase.err) {
				t.Fatalf("expected err to be %#v, got %#v", testCase.err, err)
			}

			if contains != testCase.contains {
				t.Fatalf("expected %v, got %v", testCase.contains, contains)
			}
		})
	}
}

func populate(t *testing.T, d driver.Driver) {
	mustSet(t, d, global(economy).WithField("bank"), map[string]interface{}{"name": "Central", "rate": 0.5})
	mustSet(t, d, member(economy, "1", "10"), map[string]interface{}{"balance": int64(100)})
	mustSet(t, d, member(economy, "2", "20"), map[string]interface{}{"balance": int64(5)})
	mustSet(t, d, identifier.New(economy, "ACCOUNT", 3).WithPrimaryKey("a", "b", "c").WithField("x"), list(int64(1)))
	mustSet(t, d, global(core).WithField("prefix"), list("!"))
}

func testExportImport(builder tempDriverBuilder, t *testing.T) {
	ctx := context.Background()
	custom := map[string]int{"ACCOUNT": 3}
	source := builder(t)
	destination := builder(t)

	populate(t, source)

	exported, err := source.Export(ctx, economy, custom)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	categories := []string{}

	for _, data := range exported {
		categories = append(categories, data.Category)
	}

	if diff := cmp.Diff([]string{identifier.Global, identifier.Member, "ACCOUNT"}, categories); diff != "" {
		t.Fatal(diff)
	}

	if err := destination.Import(ctx, economy, exported, custom); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	reexported, err := destination.Export(ctx, economy, custom)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff(exported, reexported); diff != "" {
		t.Fatal(diff)
	}

	if err := destination.Import(ctx, economy, []driver.CategoryData{{Category: "UNKNOWN", Data: map[string]interface{}{}}}, custom); !errors.Is(err, driver.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %#v", err)
	}
}

func testMigrate(builder tempDriverBuilder, t *testing.T) {
	ctx := context.Background()
	customs := map[identifier.Owner]map[string]int{economy: {"ACCOUNT": 3}}

	for _, plugin := range plugins.Plugins() {
		t.Run("to-"+plugin.Name(), func(t *testing.T) {
			source := builder(t)
			destination, err := plugin.NewTempDriver()

			if err != nil {
				t.Fatalf("could not build a %s driver: %s", plugin.Name(), err.Error())
			}

			defer destination.Close()

			populate(t, source)

			if err := driver.Migrate(ctx, source, destination, customs); err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			owners, err := destination.Owners(ctx)

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if diff := cmp.Diff([]identifier.Owner{core, economy}, owners); diff != "" {
				t.Fatal(diff)
			}

			for _, owner := range owners {
				before, _ := source.Export(ctx, owner, customs[owner])
				after, _ := destination.Export(ctx, owner, customs[owner])

				if diff := cmp.Diff(before, after); diff != "" {
					t.Fatal(diff)
				}
			}

			if err := driver.DeleteAll(ctx, destination); err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if owners, _ := destination.Owners(ctx); len(owners) != 0 {
				t.Fatalf("expected no owners after DeleteAll, got %#v", owners)
			}

			if owners, _ := source.Owners(ctx); len(owners) != 2 {
				t.Fatalf("expected the source to keep its owners, got %#v", owners)
			}
		})
	}
}

func testClosed(builder tempDriverBuilder, t *testing.T) {
	d := builder(t)

	if err := d.Close(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := d.Get(context.Background(), global(economy)); !errors.Is(err, driver.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %#v", err)
	}
}
