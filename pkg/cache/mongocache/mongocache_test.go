package mongocache

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/goliatone/go-datasets/pkg/cache"
	"github.com/goliatone/go-datasets/pkg/cache/cachetest"
)

func TestContract(t *testing.T) {
	uri := os.Getenv("DATASETS_MONGO_URI")
	if uri == "" {
		t.Skip("DATASETS_MONGO_URI not set")
	}
	cachetest.Run(t, func(t *testing.T) cache.Backend {
		name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
		c, client, err := Dial(context.Background(), uri, "datasets_test", name)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = c.coll.Drop(context.Background())
			_ = client.Disconnect(context.Background())
		})
		_, err = c.Delete(context.Background(), "", "")
		require.NoError(t, err)
		return c
	})
}

func TestDialRequiresURI(t *testing.T) {
	_, _, err := Dial(context.Background(), "", "", "")
	require.Error(t, err)
}

func TestFilterMatchesExactly(t *testing.T) {
	assert.Equal(t, bson.D{}, filter("", ""))
	assert.Equal(t, bson.D{{Key: "dataset", Value: "base"}}, filter("base", ""))
	assert.Equal(t, bson.D{
		{Key: "dataset", Value: "base"},
		{Key: "flag", Value: "buses_t.p"},
	}, filter("base", "buses_t.p"))
	assert.Equal(t, bson.D{{Key: "flag", Value: "buses_t.p"}}, filter("", "buses_t.p"))
}
