package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/darkden-lab/ozone/internal/manifest"
)

// Store persists plugin statuses and manifests in the plugins table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) SavePlugin(ctx context.Context, st PluginStatus, m *manifest.Manifest) error {
	var manifestJSON []byte
	if m != nil {
		var err error
		manifestJSON, err = json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal manifest: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO plugins (id, name, description, route, dir, manifest, status, error, routes, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET name = $2, description = $3, route = $4, dir = $5,
		   manifest = COALESCE($6, plugins.manifest), status = $7, error = $8, routes = $9, updated_at = $10`,
		st.ID, st.Name, st.Description, st.Route, st.Dir, manifestJSON, string(st.Status), st.Error, st.Routes, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save plugin: %w", err)
	}
	return nil
}

func (s *Store) ListPlugins(ctx context.Context) ([]PluginStatus, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, route, dir, status, error, routes, updated_at
		 FROM plugins ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}
	defer rows.Close()

	var plugins []PluginStatus
	for rows.Next() {
		var st PluginStatus
		var status string
		if err := rows.Scan(&st.ID, &st.Name, &st.Description, &st.Route, &st.Dir, &status, &st.Error, &st.Routes, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plugin: %w", err)
		}
		st.Status = Status(status)
		plugins = append(plugins, st)
	}
	return plugins, rows.Err()
}

func (s *Store) GetManifest(ctx context.Context, id string) (*manifest.Manifest, error) {
	var manifestJSON []byte
	err := s.pool.QueryRow(ctx, `SELECT manifest FROM plugins WHERE id = $1`, id).Scan(&manifestJSON)
	if err != nil {
		return nil, fmt.Errorf("plugin not found: %w", err)
	}
	if manifestJSON == nil {
		return nil, fmt.Errorf("plugin %q has no stored manifest", id)
	}
	var m manifest.Manifest
	if err := json.Unmarshal(manifestJSON, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}
