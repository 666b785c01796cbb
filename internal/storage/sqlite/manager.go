package sqlite

import "github.com/fxlatam/indago/internal/interfaces"

// Store satisfies the full storage manager contract
var _ interfaces.StorageManager = (*Store)(nil)
