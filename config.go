package mongofam

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultAsyncRetries is the maximum number of retries for failed tasks in async mode.
const DefaultAsyncRetries = 10

// Config contains database configuration for creating MongoDB client.
type Config struct {
	// AppName that is sent to the server when creating new connections.
	AppName string `yaml:"app_name" json:"app_name" env:"MONGO_APP_NAME"`

	// Address is the MongoDB address. The default is "localhost:27017".
	// It is also reported as the server address of a write concern error when the real one is unknown.
	Address string `yaml:"address" json:"address" env:"MONGO_ADDRESS"`

	// Hosts is the optional list of MongoDB hosts.
	Hosts []string `yaml:"hosts" json:"hosts" env:"MONGO_HOSTS"`

	// ReplicaSetName is the name of the replica set to connect to.
	ReplicaSetName string `yaml:"replica_set_name" json:"replica_set_name" env:"MONGO_REPLICA_SET_NAME"`

	// Compressors that can be used when communicating with a server.
	// Valid values are: "snappy", "zlib", "zstd".
	Compressors []string `yaml:"compressors" json:"compressors" env:"MONGO_COMPRESSORS"`

	// Connection contains connection pool configuration for creating MongoDB client.
	Connection *ConnectionConfig `yaml:"connection" json:"connection"`

	// Auth contains authentication configuration for creating MongoDB client.
	Auth *AuthConfig `yaml:"auth" json:"auth"`

	// WriteConcern is attached to every findAndModify command outside of transactions.
	// Nil means the server default.
	WriteConcern *WriteConcernConfig `yaml:"write_concern" json:"write_concern"`

	// BSONOptions contains optional BSON marshaling and unmarshaling behaviors.
	// Unmarshaling options also apply to documents returned by findAndModify.
	BSONOptions *BSONOptions `yaml:"bson_options" json:"bson_options"`

	// URI is a MongoDB connection string. You can provide it instead of all other connection settings.
	URI string `yaml:"uri" json:"uri" env:"MONGO_URI"`
}

// ConnectionConfig contains connection pool configuration for creating MongoDB client.
type ConnectionConfig struct {
	// ConnectTimeout is the maximum amount of time to wait for a connection to be established. Default is 30 seconds.
	ConnectTimeout *time.Duration `yaml:"connect_timeout" json:"connect_timeout" env:"MONGO_CONNECT_TIMEOUT"`

	// MaxConnIdleTime is the maximum amount of time a connection can sit in the idle pool.
	MaxConnIdleTime *time.Duration `yaml:"max_conn_idle_time" json:"max_conn_idle_time" env:"MONGO_MAX_CONN_IDLE_TIME"`

	// MaxConnecting is the maximum number of connections a pool may establish simultaneously. Default is 2.
	MaxConnecting *uint64 `yaml:"max_connecting" json:"max_connecting" env:"MONGO_MAX_CONNECTING"`

	// MaxPoolSize is the maximum number of connections to each server. Default is 100.
	MaxPoolSize *uint64 `yaml:"max_pool_size" json:"max_pool_size" env:"MONGO_MAX_POOL_SIZE"`

	// MinPoolSize is the minimum number of connections kept to each server. Default is 0.
	MinPoolSize *uint64 `yaml:"min_pool_size" json:"min_pool_size" env:"MONGO_MIN_POOL_SIZE"`

	// IsDirect is a flag that enables direct connection to MongoDB server.
	IsDirect bool `yaml:"is_direct" json:"is_direct" env:"MONGO_IS_DIRECT"`

	// TLS contains TLS configuration. Provided TLS configuration means client will use TLS connection.
	TLS *TLSConfig `yaml:"tls" json:"tls"`
}

// TLSConfig contains TLS configuration for creating MongoDB client.
type TLSConfig struct {
	// Insecure disables validation of server certificates and hostnames.
	Insecure bool `yaml:"insecure" json:"insecure" env:"MONGO_TLS_INSECURE"`

	// CAFilePath is the path to the file with certificate authorities to be considered trusted.
	CAFilePath string `yaml:"ca_file_path" json:"ca_file_path" env:"MONGO_CA_FILE_PATH"`

	// CertificateKeyFilePath is the path to the file with both client certificate and private key.
	CertificateKeyFilePath string `yaml:"certificate_key_file_path" json:"certificate_key_file_path" env:"MONGO_CERTIFICATE_KEY_FILE_PATH"`

	// PrivateKeyPassword is the password to the client private key.
	PrivateKeyPassword string `yaml:"certificate_key_password" json:"certificate_key_password" env:"MONGO_CERTIFICATE_KEY_PASSWORD"`
}

// AuthConfig contains authentication configuration for creating MongoDB client.
type AuthConfig struct {
	// Username is the username for MongoDB authentication.
	Username string `yaml:"username" json:"username" env:"MONGO_USERNAME"`

	// Password is the password for MongoDB authentication.
	Password string `yaml:"password" json:"password" env:"MONGO_PASSWORD"`

	// AuthMechanism is the authentication mechanism, e.g. "SCRAM-SHA-256" or "MONGODB-X509".
	// Default is SCRAM-SHA-256 authentication.
	AuthMechanism string `yaml:"auth_mechanism" json:"auth_mechanism" env:"MONGO_AUTH_MECHANISM"`

	// AuthSource is the name of the database to use for authentication.
	AuthSource string `yaml:"auth_source" json:"auth_source" env:"MONGO_AUTH_SOURCE"`

	// AWSSessionToken is the AWS token for MONGODB-AWS authentication with temporary credentials.
	AWSSessionToken string `yaml:"aws_session_token" json:"aws_session_token" env:"MONGO_AWS_SESSION_TOKEN"`

	// Props is a map of additional authentication properties.
	Props map[string]string `yaml:"props" json:"props"`
}

// WriteConcernConfig is the acknowledgement level requested for findAndModify commands.
type WriteConcernConfig struct {
	// W is a number of nodes, e.g. "1", or a mode name, e.g. "majority".
	W string `yaml:"w" json:"w" env:"MONGO_WRITE_CONCERN_W"`

	// Journal requests acknowledgement that the write reached the on-disk journal.
	Journal *bool `yaml:"journal" json:"journal" env:"MONGO_WRITE_CONCERN_JOURNAL"`

	// WTimeout is the time limit for the write concern. Zero means no limit.
	WTimeout time.Duration `yaml:"wtimeout" json:"wtimeout" env:"MONGO_WRITE_CONCERN_WTIMEOUT"`
}

// BSONOptions are optional BSON marshaling and unmarshaling behaviors.
type BSONOptions struct {
	// UseJSONStructTags falls back to the "json" struct tag if a "bson" tag is not specified.
	UseJSONStructTags bool `yaml:"use_json_struct_tags" json:"use_json_struct_tags"`

	// IntMinSize marshals Go integers as the minimum BSON int size that can represent the value.
	IntMinSize bool `yaml:"int_min_size" json:"int_min_size"`

	// NilMapAsEmpty marshals nil Go maps as empty BSON documents instead of BSON null.
	NilMapAsEmpty bool `yaml:"nil_map_as_empty" json:"nil_map_as_empty"`

	// NilSliceAsEmpty marshals nil Go slices as empty BSON arrays instead of BSON null.
	NilSliceAsEmpty bool `yaml:"nil_slice_as_empty" json:"nil_slice_as_empty"`

	// AllowTruncatingDoubles truncates the fractional part of BSON doubles decoded into Go integers.
	AllowTruncatingDoubles bool `yaml:"allow_truncating_doubles" json:"allow_truncating_doubles"`

	// BinaryAsSlice decodes generic BSON binary values as Go byte slices.
	BinaryAsSlice bool `yaml:"binary_as_slice" json:"binary_as_slice"`

	// DefaultDocumentM decodes documents into bson.M when the destination is interface{}.
	DefaultDocumentM bool `yaml:"default_document_m" json:"default_document_m"`

	// ObjectIDAsHexString decodes object IDs to their hex representation.
	ObjectIDAsHexString bool `yaml:"object_id_as_hex_string" json:"object_id_as_hex_string"`

	// UseLocalTimeZone decodes time.Time values in the local timezone instead of UTC.
	UseLocalTimeZone bool `yaml:"use_local_time_zone" json:"use_local_time_zone"`

	// ZeroMaps clears destination maps before decoding into them.
	ZeroMaps bool `yaml:"zero_maps" json:"zero_maps"`

	// ZeroStructs clears destination structs before decoding into them.
	ZeroStructs bool `yaml:"zero_structs" json:"zero_structs"`
}

// Read fills the config from the file (yaml, json, toml or env) if provided and from environment variables.
func (cfg *Config) Read(fileName ...string) error {
	if len(fileName) > 0 {
		return cleanenv.ReadConfig(fileName[0], cfg)
	}
	return cleanenv.ReadEnv(cfg)
}

// Build returns the write concern for commands.
// A numeric W becomes a node count, any other value is used as a mode name.
func (c *WriteConcernConfig) Build() (*WriteConcern, error) {
	if c == nil {
		return nil, nil
	}
	wc := &WriteConcern{
		Journal:  c.Journal,
		WTimeout: c.WTimeout,
	}
	if c.W != "" {
		if n, err := strconv.Atoi(c.W); err == nil {
			if n < 0 {
				return nil, fmt.Errorf("%w: negative write concern w=%d", ErrInvalidArgument, n)
			}
			wc.W = n
		} else {
			wc.W = c.W
		}
	}
	if c.WTimeout < 0 {
		return nil, fmt.Errorf("%w: negative write concern wtimeout", ErrInvalidArgument)
	}
	return wc, nil
}
