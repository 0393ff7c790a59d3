package assets

import "fmt"

// ClassesSuffix names the vocabulary file of a column: "<column>_classes.npy".
const ClassesSuffix = "_classes.npy"

func ClassesKey(column string) string {
	return column + ClassesSuffix
}

// SaveClasses stores the vocabulary of column as a .npy string array.
func SaveClasses(store Store, column string, classes []string) error {
	err := store.Put(ClassesKey(column), EncodeStrings(classes))
	if err != nil {
		return fmt.Errorf("saving classes of %q: %w", column, err)
	}
	return nil
}

// LoadClasses loads the vocabulary of column. A column that was never saved
// returns an error wrapping ErrNotFound.
func LoadClasses(store Store, column string) ([]string, error) {
	data, err := store.Get(ClassesKey(column))
	if err != nil {
		return nil, fmt.Errorf("loading classes of %q: %w", column, err)
	}
	classes, err := DecodeStrings(data)
	if err != nil {
		return nil, fmt.Errorf("loading classes of %q: %w", column, err)
	}
	return classes, nil
}
