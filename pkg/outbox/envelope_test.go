package outbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"version":1,"eventId":"e1","actor":{"kind":"admin","id":"ops"},"data":{"a":1}}`))
	require.NoError(t, err)
	assert.Equal(t, 1, env.Version)
	assert.Equal(t, Admin("ops"), env.Actor)
	assert.True(t, env.HasData())

	_, err = DecodeEnvelope([]byte(`not json`))
	assert.ErrorContains(t, err, "decode payload envelope")
}

func TestHasData(t *testing.T) {
	for raw, want := range map[string]bool{"": false, " null ": false, "{}": true, `"x"`: true} {
		assert.Equal(t, want, PayloadEnvelope{Data: json.RawMessage(raw)}.HasData(), "data %q", raw)
	}
}

func TestActorFromContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, System(), ActorFromContext(ctx, System()))
	assert.Nil(t, ActorFromContext(WithActor(ctx, nil), nil))

	ctx = WithActor(ctx, Admin("ops@horologe.in"))
	assert.Equal(t, &ActorRef{Kind: ActorAdmin, ID: "ops@horologe.in"}, ActorFromContext(ctx, Shopper()))
}
