package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPublishDeliversJSON(t *testing.T) {
	t.Parallel()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	ctx := context.Background()
	pub, err := New(ctx, "harvest-test",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	_, err = pub.client.CreateTopic(ctx, "documents")
	require.NoError(t, err)

	id, err := pub.Publish(ctx, "documents", map[string]string{"document_id": "3a7bd3e2360a"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got map[string]string
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "3a7bd3e2360a", got["document_id"])
}

func TestPublishValidation(t *testing.T) {
	t.Parallel()

	var unset *Publisher
	_, err := unset.Publish(context.Background(), "documents", "x")
	require.Error(t, err)
	require.NoError(t, unset.Close())

	_, err = New(context.Background(), "")
	require.Error(t, err)
}
