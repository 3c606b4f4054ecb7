package mongofam

import (
	"context"
	"testing"
	"time"

	"github.com/maxbolgarin/lang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/auth"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected string
	}{
		{
			name:     "Default address",
			config:   Config{},
			expected: "mongodb://localhost:27017",
		},
		{
			name: "Address and hosts",
			config: Config{
				Address: "db-1:27017",
				Hosts:   []string{"db-1:27017", "db-2:27017", "db-3:27017"},
			},
			expected: "mongodb://db-1:27017,db-2:27017,db-3:27017",
		},
		{
			name:     "Only hosts",
			config:   Config{Hosts: []string{"db-2:27017", "db-3:27017"}},
			expected: "mongodb://db-2:27017,db-3:27017",
		},
		{
			name: "Basic TLS",
			config: Config{
				Address:    "localhost:27017",
				Connection: &ConnectionConfig{TLS: &TLSConfig{}},
			},
			expected: "mongodb://localhost:27017/?tls=true",
		},
		{
			name: "TLS with all options",
			config: Config{
				Address: "localhost:27017",
				Connection: &ConnectionConfig{
					TLS: &TLSConfig{
						Insecure:               true,
						CAFilePath:             "/path/to/ca.pem",
						CertificateKeyFilePath: "/path/to/certkey.pem",
						PrivateKeyPassword:     "secret",
					},
				},
			},
			expected: "mongodb://localhost:27017/?tls=true&tlsInsecure=true&tlsCAFile=/path/to/ca.pem" +
				"&tlsCertificateKeyFile=/path/to/certkey.pem&tlsCertificateKeyFilePassword=secret",
		},
		{
			name: "Connection without TLS",
			config: Config{
				Address:    "localhost:27017",
				Connection: &ConnectionConfig{MaxPoolSize: lang.Ptr[uint64](10)},
			},
			expected: "mongodb://localhost:27017",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildURL(tt.config))
		})
	}
}

func TestDefaultPeer(t *testing.T) {
	assert.Equal(t, "localhost:27017", defaultPeer(Config{}))
	assert.Equal(t, "db-1:27017", defaultPeer(Config{Address: "db-1:27017", Hosts: []string{"db-2:27017"}}))
	assert.Equal(t, "db-2:27017", defaultPeer(Config{Hosts: []string{"db-2:27017"}}))
	assert.Equal(t, "", defaultPeer(Config{URI: "mongodb+srv://cluster.example.net"}))
}

func TestBuildCredential(t *testing.T) {
	cred := buildCredential(Config{Auth: &AuthConfig{
		Username:        "key-id",
		Password:        "secret",
		AuthMechanism:   auth.MongoDBAWS,
		AWSSessionToken: "token",
		Props:           map[string]string{"region": "eu"},
	}})

	assert.Equal(t, "key-id", cred.Username)
	assert.Equal(t, auth.MongoDBAWS, cred.AuthMechanism)
	assert.Equal(t, map[string]string{"region": "eu", "AWS_SESSION_TOKEN": "token"}, cred.AuthMechanismProperties)

	cred = buildCredential(Config{Auth: &AuthConfig{Username: "user", AWSSessionToken: "ignored"}})
	assert.Empty(t, cred.AuthMechanismProperties)
}

func TestBuildDecoder(t *testing.T) {
	type doc struct {
		ID    bson.ObjectID `bson:"_id"`
		Total int           `json:"sum"`
	}
	type hexDoc struct {
		ID string `bson:"_id"`
	}

	id := bson.NewObjectID()
	raw, err := bson.Marshal(bson.D{{Key: "_id", Value: id}, {Key: "sum", Value: 3.0}})
	require.NoError(t, err)

	var plain doc
	require.NoError(t, buildDecoder(nil)(raw, &plain))
	assert.Equal(t, id, plain.ID)
	assert.Equal(t, 0, plain.Total)

	var tagged doc
	require.NoError(t, buildDecoder(&BSONOptions{UseJSONStructTags: true})(raw, &tagged))
	assert.Equal(t, 3, tagged.Total)

	var hex hexDoc
	require.NoError(t, buildDecoder(&BSONOptions{ObjectIDAsHexString: true})(raw, &hex))
	assert.Equal(t, id.Hex(), hex.ID)

	var m map[string]any
	require.NoError(t, buildDecoder(&BSONOptions{DefaultDocumentM: true})(raw, &m))
	assert.Equal(t, id, m["_id"])
}

func TestConnectPingFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	client, err := Connect(ctx, Config{
		Address: "127.0.0.1:1",
		Connection: &ConnectionConfig{
			ConnectTimeout: lang.Ptr(100 * time.Millisecond),
			IsDirect:       true,
		},
	})
	require.Error(t, err)
	assert.Nil(t, client)
}
