package taskstore

import (
	"embed"

	"github.com/limaronaldo/orc-task/internal/dbdriver"
)

//go:embed schema/*.sql schema/postgres/*.sql
var schemaFiles embed.FS

// embedSchemaFS adapts embed.FS to dbdriver.SchemaFS.
type embedSchemaFS struct{}

func (embedSchemaFS) ReadDir(name string) ([]dbdriver.DirEntry, error) {
	entries, err := schemaFiles.ReadDir(name)
	if err != nil {
		return nil, err
	}
	out := make([]dbdriver.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = e
	}
	return out, nil
}

func (embedSchemaFS) ReadFile(name string) ([]byte, error) {
	return schemaFiles.ReadFile(name)
}
