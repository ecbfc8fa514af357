package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-tracks/DataTracks/internal/engine"
)

func TestNewBuildsEachKnownKind(t *testing.T) {
	for _, k := range []engine.Kind{engine.KindSQLite, engine.KindPostgres, engine.KindNeo4j, engine.KindMongo} {
		eng, err := engine.New(k)
		require.NoError(t, err)
		assert.NotNil(t, eng)
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := engine.New(engine.Kind("Redis"))
	require.Error(t, err)
}

func TestErrEngineFatalMessage(t *testing.T) {
	err := &engine.ErrEngineFatal{EngineID: 7, Reason: "bad shape"}
	assert.Contains(t, err.Error(), "7")
	assert.Contains(t, err.Error(), "bad shape")
}

func TestErrEngineDegradedMessage(t *testing.T) {
	err := &engine.ErrEngineDegraded{EngineID: 9}
	assert.Contains(t, err.Error(), "9")
}
