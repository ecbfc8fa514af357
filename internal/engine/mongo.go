package engine

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/data-tracks/DataTracks/internal/value"
)

// mongoEngine persists each wagon as one document in the configured
// collection (default "trains"), with the station id stored as a
// station_id field of the document. There is no pack example wiring go.mongodb.org's
// driver; this adapter follows the same Init/Apply/Close shape as the
// sqlite/postgres/neo4j adapters in this package so the driver registry
// stays uniform across kinds.
type mongoEngine struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func newMongoEngine() Engine { return &mongoEngine{} }

func (e *mongoEngine) Init(ctx context.Context, cfg *value.Dict) error {
	uri, err := stringField(cfg, "uri")
	if err != nil {
		return err
	}
	dbName := stringFieldOr(cfg, "database", "datatracks")
	collName := stringFieldOr(cfg, "collection", "trains")

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("engine/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("engine/mongo: ping: %w", err)
	}

	e.client = client
	e.collection = client.Database(dbName).Collection(collName)
	return nil
}

func (e *mongoEngine) Apply(ctx context.Context, stationID uint32, wagons []map[string]value.Value) error {
	if len(wagons) == 0 {
		return nil
	}
	docs := make([]any, 0, len(wagons))
	for _, w := range wagons {
		doc := bson.M{"station_id": int64(stationID)}
		for k, v := range w {
			doc[k] = nativeOf(v)
		}
		docs = append(docs, doc)
	}
	if _, err := e.collection.InsertMany(ctx, docs); err != nil {
		return classifyApplyErr(err, mongo.IsTimeout, mongo.IsNetworkError)
	}
	return nil
}

func (e *mongoEngine) Close() error {
	return e.client.Disconnect(context.Background())
}
