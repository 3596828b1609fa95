package arangodb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
)

type Client interface {
	// Setup operations
	EnsureDatabase(ctx context.Context) error
	EnsureCollections(ctx context.Context) error
	EnsureGraph(ctx context.Context) error

	// Connect attaches to an existing database without creating anything.
	Connect(ctx context.Context) error

	// Query executes an AQL pattern query with bind parameters and returns every row.
	Query(ctx context.Context, query string, bindVars map[string]any) ([]Row, error)

	Close() error
}

type Config struct {
	URL      string
	Username string
	Password string
	Database string
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("arangodb URL is required")
	}
	if c.Username == "" {
		return fmt.Errorf("arangodb username is required")
	}
	if c.Database == "" {
		return fmt.Errorf("arangodb database name is required")
	}
	return nil
}

type client struct {
	conn         connection.Connection
	arangoClient arangodb.Client
	db           arangodb.Database
	cfg          Config
}

func New(ctx context.Context, cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("arangodb config: %w", err)
	}

	endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
	conn := connection.NewHttp2Connection(connection.DefaultHTTP2ConfigurationWrapper(endpoint, true))

	auth := connection.NewBasicAuth(cfg.Username, cfg.Password)
	if err := conn.SetAuthentication(auth); err != nil {
		return nil, fmt.Errorf("arangodb auth: %w", err)
	}

	return &client{
		conn:         conn,
		arangoClient: arangodb.NewClient(conn),
		cfg:          cfg,
	}, nil
}

func (c *client) Close() error {
	return nil
}

func (c *client) Connect(ctx context.Context) error {
	db, err := c.arangoClient.GetDatabase(ctx, c.cfg.Database, nil)
	if err != nil {
		return &UnavailableError{Op: "get database", Err: err}
	}
	c.db = db
	return nil
}

func (c *client) EnsureDatabase(ctx context.Context) error {
	start := time.Now()

	exists, err := c.arangoClient.DatabaseExists(ctx, c.cfg.Database)
	if err != nil {
		return fmt.Errorf("check database exists: %w", err)
	}

	if !exists {
		_, err = c.arangoClient.CreateDatabase(ctx, c.cfg.Database, nil)
		if err != nil {
			return fmt.Errorf("create database: %w", err)
		}
		slog.InfoContext(ctx, "arangodb database created",
			"database", c.cfg.Database,
			"duration_ms", time.Since(start).Milliseconds())
	}

	return c.Connect(ctx)
}

func (c *client) EnsureCollections(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("%w, call EnsureDatabase first", ErrDatabaseNotInitialized)
	}

	for _, name := range nodeCollections {
		if err := c.ensureCollection(ctx, name, false); err != nil {
			return err
		}
	}

	for _, def := range edgeDefinitions {
		if err := c.ensureCollection(ctx, def.Collection, true); err != nil {
			return err
		}
	}

	return nil
}

func (c *client) ensureCollection(ctx context.Context, name string, isEdge bool) error {
	exists, err := c.db.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s exists: %w", name, err)
	}

	if !exists {
		props := &arangodb.CreateCollectionPropertiesV2{}
		if isEdge {
			colType := arangodb.CollectionTypeEdge
			props.Type = &colType
		} else {
			colType := arangodb.CollectionTypeDocument
			props.Type = &colType
		}

		_, err = c.db.CreateCollectionV2(ctx, name, props)
		if err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		slog.InfoContext(ctx, "arangodb collection created",
			"collection", name,
			"is_edge", isEdge)
	}

	return nil
}

func (c *client) EnsureGraph(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("%w, call EnsureDatabase first", ErrDatabaseNotInitialized)
	}

	exists, err := c.db.GraphExists(ctx, GraphName)
	if err != nil {
		return fmt.Errorf("check graph exists: %w", err)
	}

	if exists {
		return nil
	}

	defs := make([]arangodb.EdgeDefinition, 0, len(edgeDefinitions))
	for _, def := range edgeDefinitions {
		defs = append(defs, arangodb.EdgeDefinition{
			Collection: def.Collection,
			From:       def.From,
			To:         def.To,
		})
	}

	_, err = c.db.CreateGraph(ctx, GraphName, &arangodb.GraphDefinition{
		Name:            GraphName,
		EdgeDefinitions: defs,
	}, nil)
	if err != nil {
		return fmt.Errorf("create graph: %w", err)
	}

	slog.InfoContext(ctx, "arangodb graph created", "graph", GraphName)
	return nil
}

func (c *client) Query(ctx context.Context, query string, bindVars map[string]any) ([]Row, error) {
	if c.db == nil {
		return nil, &UnavailableError{Op: "execute query", Err: ErrDatabaseNotInitialized}
	}

	start := time.Now()

	cursor, err := c.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: bindVars,
	})
	if err != nil {
		return nil, &UnavailableError{Op: "execute query", Err: err}
	}
	defer cursor.Close()

	var rows []Row
	for cursor.HasMore() {
		var doc json.RawMessage
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return nil, &UnavailableError{Op: "read document", Err: err}
		}
		rows = append(rows, Row(doc))
	}

	slog.DebugContext(ctx, "arangodb query completed",
		"bind_vars", len(bindVars),
		"rows", len(rows),
		"duration_ms", time.Since(start).Milliseconds())

	return rows, nil
}
