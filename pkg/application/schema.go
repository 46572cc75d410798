package application

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
)

// ApplySchemas executes every embedded .sql file registered by the
// loaded modules, in registration order. Schema files are written to be
// re-runnable (IF NOT EXISTS guards), so this doubles as a cheap
// migration step at startup.
func ApplySchemas(ctx context.Context, app Application) error {
	pool := app.DB()
	for _, schemaFS := range app.Schemas() {
		err := fs.WalkDir(schemaFS, ".", func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !strings.HasSuffix(path, ".sql") {
				return nil
			}
			contents, err := fs.ReadFile(schemaFS, path)
			if err != nil {
				return fmt.Errorf("failed to read schema %s: %w", path, err)
			}
			if _, err := pool.Exec(ctx, string(contents)); err != nil {
				return fmt.Errorf("failed to apply schema %s: %w", path, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
