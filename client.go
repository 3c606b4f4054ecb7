package mongofam

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/maxbolgarin/gorder"
	"github.com/maxbolgarin/lang"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/auth"
)

const defaultAddress = "localhost:27017"

// Client is a handle representing a pool of connections to a MongoDB deployment.
// It is safe for concurrent use by multiple goroutines.
type Client struct {
	client *mongo.Client
	config Config
	wc     *WriteConcern
	decode DecodeFunc

	dbs  map[string]*Database
	adbs map[string]*AsyncDatabase
	mu   sync.RWMutex
}

// Connect creates a new MongoDB client with the given configuration.
// It connects to the MongoDB cluster and pings the primary to validate the connection.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	opts := options.Client().ApplyURI(buildURL(cfg))
	if cfg.URI != "" {
		opts = options.Client().ApplyURI(cfg.URI)
	}

	lang.IfV(cfg.AppName, func() { opts.SetAppName(cfg.AppName) })
	lang.IfV(cfg.ReplicaSetName, func() { opts.SetReplicaSet(cfg.ReplicaSetName) })
	lang.IfF(len(cfg.Compressors) > 0, func() { opts.SetCompressors(cfg.Compressors) })

	if cfg.Connection != nil {
		lang.IfV(cfg.Connection.ConnectTimeout, func() { opts.SetConnectTimeout(*cfg.Connection.ConnectTimeout) })
		lang.IfV(cfg.Connection.MaxConnIdleTime, func() { opts.SetMaxConnIdleTime(*cfg.Connection.MaxConnIdleTime) })
		lang.IfV(cfg.Connection.MaxConnecting, func() { opts.SetMaxConnecting(*cfg.Connection.MaxConnecting) })
		lang.IfV(cfg.Connection.MaxPoolSize, func() { opts.SetMaxPoolSize(*cfg.Connection.MaxPoolSize) })
		lang.IfV(cfg.Connection.MinPoolSize, func() { opts.SetMinPoolSize(*cfg.Connection.MinPoolSize) })
		lang.IfV(cfg.Connection.IsDirect, func() { opts.SetDirect(cfg.Connection.IsDirect) })
	}

	if cfg.Auth != nil {
		opts.SetAuth(buildCredential(cfg))
	}

	if cfg.BSONOptions != nil {
		opts.SetBSONOptions(buildBSONOptions(cfg))
	}

	opts.SetMonitor(newPeerMonitor())

	wc, err := cfg.WriteConcern.Build()
	if err != nil {
		return nil, fmt.Errorf("write concern: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("validate options: %w", err)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Join(HandleMongoError(err), client.Disconnect(ctx))
	}

	out := &Client{
		client: client,
		config: cfg,
		wc:     wc,
		decode: buildDecoder(cfg.BSONOptions),
		dbs:    make(map[string]*Database),
		adbs:   make(map[string]*AsyncDatabase),
	}

	return out, nil
}

// Disconnect closes the connection to the MongoDB cluster.
func (m *Client) Disconnect(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Client returns the underlying mongo client.
func (m *Client) Client() *mongo.Client {
	return m.client
}

// Ping sends a ping command to verify that the client can connect to the deployment.
func (m *Client) Ping(ctx context.Context) error {
	return HandleMongoError(m.client.Ping(ctx, nil))
}

// Database returns a handle to a database.
func (m *Client) Database(name string) *Database {
	m.mu.RLock()
	db, ok := m.dbs[name]
	m.mu.RUnlock()

	if ok {
		return db
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.dbs[name]; ok {
		return db
	}
	mdb := m.client.Database(name)
	db = &Database{
		db: mdb,
		runner: driverRunner{
			db:          mdb,
			defaultPeer: defaultPeer(m.config),
		},
		decode: m.decode,
		wc:     m.wc,
		colls:  make(map[string]*Collection),
	}
	m.dbs[name] = db

	return db
}

// AsyncDatabase returns a handle to a database that queues findAndModify commands instead of waiting for them.
// Workers is the number of queue workers, logger receives errors of tasks that are not retried.
func (m *Client) AsyncDatabase(ctx context.Context, name string, workers int, logger gorder.Logger) *AsyncDatabase {
	m.mu.RLock()
	adb, ok := m.adbs[name]
	m.mu.RUnlock()

	if ok {
		return adb
	}

	db := m.Database(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if adb, ok := m.adbs[name]; ok {
		return adb
	}
	adb = newAsyncDatabase(ctx, db, workers, logger)
	m.adbs[name] = adb

	return adb
}

// defaultPeer is the address reported when the command monitor did not see the server.
func defaultPeer(cfg Config) string {
	switch {
	case cfg.Address != "":
		return cfg.Address
	case len(cfg.Hosts) > 0:
		return cfg.Hosts[0]
	case cfg.URI != "":
		return ""
	default:
		return defaultAddress
	}
}

func buildURL(cfg Config) string {
	out := strings.Builder{}
	out.WriteString("mongodb://")
	if cfg.Address == "" && len(cfg.Hosts) == 0 {
		cfg.Address = defaultAddress
	}
	hosts := make([]string, 0, len(cfg.Hosts)+1)
	lang.IfV(cfg.Address, func() { hosts = append(hosts, cfg.Address) })
	for _, host := range cfg.Hosts {
		if host != cfg.Address {
			hosts = append(hosts, host)
		}
	}
	out.WriteString(strings.Join(hosts, ","))

	if cfg.Connection != nil && cfg.Connection.TLS != nil {
		tls := cfg.Connection.TLS
		out.WriteString("/?tls=true")
		lang.IfV(tls.Insecure, func() { out.WriteString("&tlsInsecure=true") })
		lang.IfV(tls.CAFilePath, func() { out.WriteString("&tlsCAFile=" + tls.CAFilePath) })
		lang.IfV(tls.CertificateKeyFilePath, func() { out.WriteString("&tlsCertificateKeyFile=" + tls.CertificateKeyFilePath) })
		lang.IfV(tls.PrivateKeyPassword, func() { out.WriteString("&tlsCertificateKeyFilePassword=" + tls.PrivateKeyPassword) })
	}

	return out.String()
}

func buildCredential(cfg Config) options.Credential {
	props := make(map[string]string, len(cfg.Auth.Props)+1)
	for k, v := range cfg.Auth.Props {
		props[k] = v
	}
	if cfg.Auth.AuthMechanism == auth.MongoDBAWS && cfg.Auth.AWSSessionToken != "" {
		props["AWS_SESSION_TOKEN"] = cfg.Auth.AWSSessionToken
	}

	return options.Credential{
		Username:                cfg.Auth.Username,
		Password:                cfg.Auth.Password,
		AuthSource:              cfg.Auth.AuthSource,
		AuthMechanism:           cfg.Auth.AuthMechanism,
		AuthMechanismProperties: props,
	}
}

func buildBSONOptions(cfg Config) *options.BSONOptions {
	return &options.BSONOptions{
		UseJSONStructTags:      cfg.BSONOptions.UseJSONStructTags,
		IntMinSize:             cfg.BSONOptions.IntMinSize,
		NilMapAsEmpty:          cfg.BSONOptions.NilMapAsEmpty,
		NilSliceAsEmpty:        cfg.BSONOptions.NilSliceAsEmpty,
		AllowTruncatingDoubles: cfg.BSONOptions.AllowTruncatingDoubles,
		BinaryAsSlice:          cfg.BSONOptions.BinaryAsSlice,
		DefaultDocumentM:       cfg.BSONOptions.DefaultDocumentM,
		ObjectIDAsHexString:    cfg.BSONOptions.ObjectIDAsHexString,
		UseLocalTimeZone:       cfg.BSONOptions.UseLocalTimeZone,
		ZeroMaps:               cfg.BSONOptions.ZeroMaps,
		ZeroStructs:            cfg.BSONOptions.ZeroStructs,
	}
}

// buildDecoder returns a DecodeFunc that applies the unmarshaling options.
// RunCommand replies do not go through the collection decoder of the driver, so the options are applied here.
func buildDecoder(opts *BSONOptions) DecodeFunc {
	if opts == nil {
		return bson.Unmarshal
	}
	return func(doc bson.Raw, dest any) error {
		dec := bson.NewDecoder(bson.NewDocumentReader(bytes.NewReader(doc)))
		lang.IfV(opts.UseJSONStructTags, dec.UseJSONStructTags)
		lang.IfV(opts.AllowTruncatingDoubles, dec.AllowTruncatingDoubles)
		lang.IfV(opts.BinaryAsSlice, dec.BinaryAsSlice)
		lang.IfV(opts.DefaultDocumentM, dec.DefaultDocumentM)
		lang.IfV(opts.ObjectIDAsHexString, dec.ObjectIDAsHexString)
		lang.IfV(opts.UseLocalTimeZone, dec.UseLocalTimeZone)
		lang.IfV(opts.ZeroMaps, dec.ZeroMaps)
		lang.IfV(opts.ZeroStructs, dec.ZeroStructs)
		return dec.Decode(dest)
	}
}
