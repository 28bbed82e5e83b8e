package checker

import (
	"os"

	"github.com/halodb/storage-node/internal/storage/volume"
)

// CheckContext bundles what every disk probe of one check run needs. It is
// built once per run and shared read-only by all probes of that run.
type CheckContext struct {
	FS                 volume.Filesystem
	ExpectedPermission os.FileMode
}
