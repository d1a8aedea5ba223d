package redbdriver

import (
	"context"

	"github.com/redbco/redb-driver-go/internal/cluster"
	"github.com/redbco/redb-driver-go/internal/driererr"
	"github.com/redbco/redb-driver-go/internal/wire"
)

// DatabaseManager exposes database lifecycle operations (spec §4.J
// "database manager: contains, create, get, all, delete, schema"), plus
// the type-schema/rule-schema split `original_source/src/database.rs`
// defines alongside the combined schema.
type DatabaseManager struct {
	d *Driver
}

// Database is a named database as reported by the server.
type Database struct {
	Name string
}

// All lists every database visible to the current user.
func (m *DatabaseManager) All(ctx context.Context) ([]Database, error) {
	payload, err := m.d.route(ctx, cluster.Strong(), wire.DatabasesAllRequest{})
	if err != nil {
		return nil, err
	}
	resp, ok := payload.(wire.DatabasesAllResponse)
	if !ok {
		return nil, driererr.New(driererr.KindUnexpectedResponse, "unexpected reply to DatabasesAllRequest")
	}

	out := make([]Database, 0, len(resp.Databases))
	for _, info := range resp.Databases {
		out = append(out, Database{Name: info.Name})
	}
	return out, nil
}

// Contains reports whether a database by this name exists.
func (m *DatabaseManager) Contains(ctx context.Context, name string) (bool, error) {
	payload, err := m.d.route(ctx, cluster.Strong(), wire.DatabaseContainsRequest{Name: name})
	if err != nil {
		return false, err
	}
	resp, ok := payload.(wire.DatabaseContainsResponse)
	if !ok {
		return false, driererr.New(driererr.KindUnexpectedResponse, "unexpected reply to DatabaseContainsRequest")
	}
	return resp.Exists, nil
}

// Get returns a handle to an existing database, failing if it does not
// exist.
func (m *DatabaseManager) Get(ctx context.Context, name string) (Database, error) {
	exists, err := m.Contains(ctx, name)
	if err != nil {
		return Database{}, err
	}
	if !exists {
		return Database{}, driererr.New(driererr.KindUnexpectedResponse, "database %q does not exist", name)
	}
	return Database{Name: name}, nil
}

// Create creates a new database.
func (m *DatabaseManager) Create(ctx context.Context, name string) error {
	_, err := m.d.route(ctx, cluster.Strong(), wire.DatabaseCreateRequest{Name: name})
	return err
}

// Delete deletes an existing database.
func (m *DatabaseManager) Delete(ctx context.Context, name string) error {
	_, err := m.d.route(ctx, cluster.Strong(), wire.DatabaseDeleteRequest{Name: name})
	return err
}

// Schema returns a database's full schema text (data and type
// definitions combined).
func (m *DatabaseManager) Schema(ctx context.Context, name string) (string, error) {
	payload, err := m.d.route(ctx, cluster.Strong(), wire.DatabaseSchemaRequest{Name: name})
	if err != nil {
		return "", err
	}
	resp, ok := payload.(wire.DatabaseSchemaResponse)
	if !ok {
		return "", driererr.New(driererr.KindUnexpectedResponse, "unexpected reply to DatabaseSchemaRequest")
	}
	return resp.Schema, nil
}

// TypeSchema returns only the type-definition portion of a database's
// schema.
func (m *DatabaseManager) TypeSchema(ctx context.Context, name string) (string, error) {
	payload, err := m.d.route(ctx, cluster.Strong(), wire.DatabaseTypeSchemaRequest{Name: name})
	if err != nil {
		return "", err
	}
	resp, ok := payload.(wire.DatabaseTypeSchemaResponse)
	if !ok {
		return "", driererr.New(driererr.KindUnexpectedResponse, "unexpected reply to DatabaseTypeSchemaRequest")
	}
	return resp.Schema, nil
}

// RuleSchema returns only the rule-definition portion of a database's
// schema.
func (m *DatabaseManager) RuleSchema(ctx context.Context, name string) (string, error) {
	payload, err := m.d.route(ctx, cluster.Strong(), wire.DatabaseRuleSchemaRequest{Name: name})
	if err != nil {
		return "", err
	}
	resp, ok := payload.(wire.DatabaseRuleSchemaResponse)
	if !ok {
		return "", driererr.New(driererr.KindUnexpectedResponse, "unexpected reply to DatabaseRuleSchemaRequest")
	}
	return resp.Schema, nil
}
