// Package all registers every backend adapter with the backend registry.
package all

import (
	_ "github.com/gezibash/scs/internal/backend/badger"
	_ "github.com/gezibash/scs/internal/backend/fs"
	_ "github.com/gezibash/scs/internal/backend/memory"
	_ "github.com/gezibash/scs/internal/backend/redis"
	_ "github.com/gezibash/scs/internal/backend/s3"
	_ "github.com/gezibash/scs/internal/backend/seaweedfs"
	_ "github.com/gezibash/scs/internal/backend/sqlite"
)
