package sqlstore

import "context"

// Timestamps are stored as unix milliseconds so the same DDL works on every
// supported engine. Permissions are a JSON array in a text column.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL DEFAULT '',
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  avatar_url TEXT NOT NULL DEFAULT '',
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  is_verified BOOLEAN NOT NULL DEFAULT FALSE,
  default_tenant_id TEXT NOT NULL DEFAULT '',
  last_login_at BIGINT,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL,
  deleted_at BIGINT
)`,
	`CREATE TABLE IF NOT EXISTS tenants (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  plan TEXT NOT NULL DEFAULT 'free',
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS memberships (
  tenant_id TEXT NOT NULL REFERENCES tenants(id),
  user_id TEXT NOT NULL REFERENCES users(id),
  role TEXT NOT NULL,
  permissions TEXT NOT NULL DEFAULT '[]',
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  invited_by TEXT NOT NULL DEFAULT '',
  invited_at BIGINT,
  joined_at BIGINT,
  created_at BIGINT NOT NULL,
  invitation_token_hash TEXT UNIQUE,
  invitation_expires_at BIGINT,
  PRIMARY KEY (tenant_id, user_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_memberships_user ON memberships(user_id)`,
	`CREATE TABLE IF NOT EXISTS oauth_links (
  provider TEXT NOT NULL,
  provider_account_id TEXT NOT NULL,
  user_id TEXT NOT NULL REFERENCES users(id),
  created_at BIGINT NOT NULL,
  PRIMARY KEY (provider, provider_account_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_oauth_links_user ON oauth_links(user_id, provider)`,
	`CREATE TABLE IF NOT EXISTS password_resets (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  token_hash TEXT NOT NULL UNIQUE,
  expires_at BIGINT NOT NULL,
  used BOOLEAN NOT NULL DEFAULT FALSE,
  used_at BIGINT,
  created_at BIGINT NOT NULL
)`,
}

// EnsureSchema creates the tables if they do not exist. It is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return translate(err, "[Store EnsureSchema]")
		}
	}
	return nil
}
