package engine

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/data-tracks/DataTracks/internal/value"
)

// neo4jEngine persists wagons as (:Train) nodes, one CREATE per wagon, the
// way WessleyAI's Neo4jRepo flattens a row into a map[string]any for the
// Cypher parameters before a driver.ExecuteQuery call.
type neo4jEngine struct {
	driver   neo4j.DriverWithContext
	database string
}

func newNeo4jEngine() Engine { return &neo4jEngine{} }

func (e *neo4jEngine) Init(ctx context.Context, cfg *value.Dict) error {
	uri, err := stringField(cfg, "uri")
	if err != nil {
		return err
	}
	username := stringFieldOr(cfg, "username", "")
	password := stringFieldOr(cfg, "password", "")

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return fmt.Errorf("engine/neo4j: new driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("engine/neo4j: verify connectivity: %w", err)
	}

	e.driver = driver
	e.database = stringFieldOr(cfg, "database", "neo4j")
	return nil
}

func (e *neo4jEngine) Apply(ctx context.Context, stationID uint32, wagons []map[string]value.Value) error {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: e.database})
	defer session.Close(ctx)

	for _, w := range wagons {
		props := wagonToProps(w)
		props["station_id"] = int64(stationID)

		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, "CREATE (n:Train $props) RETURN n", map[string]any{"props": props})
		})
		if err != nil {
			return classifyApplyErr(err, neo4j.IsRetryable)
		}
	}
	return nil
}

func (e *neo4jEngine) Close() error {
	return e.driver.Close(context.Background())
}

// wagonToProps flattens a wagon's field map into Cypher node properties,
// the conversion performed by WessleyAI's componentToMap for its
// Neo4jRepo.Create calls.
func wagonToProps(wagon map[string]value.Value) map[string]any {
	props := make(map[string]any, len(wagon))
	for k, v := range wagon {
		props[k] = nativeOf(v)
	}
	return props
}

func nativeOf(v value.Value) any {
	switch v.Kind {
	case value.KindInt:
		return v.Int
	case value.KindFloat:
		return v.Float.AsFloat64()
	case value.KindBool:
		return v.Bool
	case value.KindText:
		return v.Text
	case value.KindNull:
		return nil
	default:
		return textOf(v)
	}
}
