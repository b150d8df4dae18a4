// models/dataset_key.go
package models

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// DatasetKey identifies one cached dataset: a model's category for a given
// step in one provider directory.
type DatasetKey struct {
	Model     string `json:"model"`
	Category  string `json:"category"`
	Step      int    `json:"step"`
	Directory string `json:"directory"`
}

func (k DatasetKey) String() string {
	return fmt.Sprintf("%s/%s/%d/%s", k.Model, k.Category, k.Step, k.Directory)
}

// Path returns {root}/{MODEL}/{CATEGORY}/{STEP}/{DIRECTORY}.
func (k DatasetKey) Path(root string) string {
	return filepath.Join(root,
		strings.ToUpper(k.Model),
		k.Category,
		strconv.Itoa(k.Step),
		k.Directory,
	)
}

// MemberPath returns the per-member subdirectory of the key's path.
func (k DatasetKey) MemberPath(root string, member int) string {
	return filepath.Join(k.Path(root), fmt.Sprintf("%02d", member))
}
