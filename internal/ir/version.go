package ir

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// SchemaVersion is the layout version of stored entities. SQLite keeps
	// it in user_version; redis under the {prefix}schema key.
	SchemaVersion = 1

	// PlatformVersion is the nimbus release version.
	PlatformVersion = "0.1.0"

	// InitialEntityVersion is assigned to newly created entities.
	InitialEntityVersion = "0.0.1"
)

// NextVersion bumps the patch component of an entity version. An empty or
// unparsable previous version restarts at InitialEntityVersion.
func NextVersion(prev string) string {
	parts := strings.Split(prev, ".")
	if len(parts) != 3 {
		return InitialEntityVersion
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return InitialEntityVersion
		}
		nums[i] = n
	}
	return fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2]+1)
}
