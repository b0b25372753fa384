package driver

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jrife/confdb/storage/document"
	"github.com/jrife/confdb/storage/identifier"
	"github.com/jrife/confdb/utils/log"
	"go.uber.org/zap"
)

// ErrUnknownCategory is returned by Import when data names a category
// that is neither built in nor declared as a custom category
var ErrUnknownCategory = errors.New("unknown category")

// Arity returns the primary key arity of category, looking in custom
// for categories that are not built in
func Arity(category string, custom map[string]int) (int, error) {
	if arity, ok := identifier.BuiltinArity(category); ok {
		return arity, nil
	}

	if arity, ok := custom[category]; ok {
		return arity, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
}

// Categories lists the built-in categories followed by the custom
// categories in ascending order
func Categories(custom map[string]int) []string {
	categories := identifier.BuiltinCategories()
	names := make([]string, 0, len(custom))

	for name := range custom {
		if !identifier.IsBuiltin(name) {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return append(categories, names...)
}

// Export implements Driver.Export with one Get per category
func (base Base) Export(ctx context.Context, owner identifier.Owner, custom map[string]int) ([]CategoryData, error) {
	result := []CategoryData{}

	for _, category := range Categories(custom) {
		arity, _ := Arity(category, custom)
		data, err := base.Get(ctx, identifier.New(owner, category, arity))

		if errors.Is(err, ErrNotFound) {
			continue
		} else if err != nil {
			return nil, wrapError(fmt.Sprintf("could not export category %s", category), err)
		}

		result = append(result, CategoryData{Category: category, Data: data})
	}

	return result, nil
}

// Import implements Driver.Import with one Set per scope instance
func (base Base) Import(ctx context.Context, owner identifier.Owner, data []CategoryData, custom map[string]int) error {
	return SplitCategories(owner, data, custom, func(id identifier.Identifier, value interface{}) error {
		return base.Set(ctx, id, value)
	})
}

// SplitCategories splits every exported category document into its
// scope instances and calls fn with the identifier and document of
// each one
func SplitCategories(owner identifier.Owner, data []CategoryData, custom map[string]int, fn func(id identifier.Identifier, value interface{}) error) error {
	for _, categoryData := range data {
		arity, err := Arity(categoryData.Category, custom)

		if err != nil {
			return err
		}

		rows, err := document.Split(categoryData.Data, arity)

		if err != nil {
			return fmt.Errorf("could not split category %s: %w", categoryData.Category, err)
		}

		root := identifier.New(owner, categoryData.Category, arity)

		for _, row := range rows {
			if err := fn(root.WithPrimaryKey(row.Key...), row.Value); err != nil {
				return wrapError(fmt.Sprintf("could not import category %s", categoryData.Category), err)
			}
		}
	}

	return nil
}

// Migrate copies the data of every owner stored in from into to.
// customs holds the custom categories of each owner. from is never
// modified.
func Migrate(ctx context.Context, from Driver, to Driver, customs map[identifier.Owner]map[string]int) error {
	logger, ctx := log.LoggerFromContext(ctx, zap.L())
	logger = log.Operation(ctx, logger, "migrate", zap.String("from", from.Name()), zap.String("to", to.Name()))
	owners, err := from.Owners(ctx)

	if err != nil {
		return wrapError("could not list owners", err)
	}

	logger.Info("migrating", zap.Int("owners", len(owners)))

	for _, owner := range owners {
		custom := customs[owner]
		data, err := from.Export(ctx, owner, custom)

		if err != nil {
			return wrapError(fmt.Sprintf("could not export %s", owner), err)
		}

		if err := to.Import(ctx, owner, data, custom); err != nil {
			return wrapError(fmt.Sprintf("could not import %s", owner), err)
		}

		logger.Debug("migrated owner", zap.Stringer("owner", owner), zap.Int("categories", len(data)))
	}

	return nil
}

// DeleteAll clears every owner stored in d
func DeleteAll(ctx context.Context, d Driver) error {
	owners, err := d.Owners(ctx)

	if err != nil {
		return wrapError("could not list owners", err)
	}

	for _, owner := range owners {
		if err := d.Clear(ctx, identifier.Identifier{Owner: owner}); err != nil {
			return wrapError(fmt.Sprintf("could not clear %s", owner), err)
		}
	}

	return nil
}
