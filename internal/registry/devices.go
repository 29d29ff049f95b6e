package registry

import (
	_ "github.com/vuga-dev/vuga/device/sisvga" // Register graphics adapter device handlers
)
