// Package mongo wraps the MongoDB client shared by the metadata store and
// the GridFS blob store.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Laisky/laisky-chart-files/library/log"
)

const (
	defaultTimeout      = 30 * time.Second
	healthCheckInterval = 10 * time.Second
)

// DB is a handle on one database of a shared client.
// Every handle must be closed; the client disconnects with the last one.
type DB interface {
	Close(ctx context.Context) error
	GetCol(colName string) *mongo.Collection
	CurrentDB() *mongo.Database
}

// DialInfo describes where and how to connect.
type DialInfo struct {
	Addr,
	DBName,
	User,
	Pwd string
	AuthDB string
}

// seams replaced by tests
var (
	connectMongo = func(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
		return mongo.Connect(ctx, opts)
	}
	pingMongo = func(ctx context.Context, cli *mongo.Client) error {
		return cli.Ping(ctx, readpref.Primary())
	}
	disconnectMongo = func(ctx context.Context, cli *mongo.Client) error {
		return cli.Disconnect(ctx)
	}
)

type handle struct {
	conn   *conn
	dbName string
	once   sync.Once
}

// conn is one mongo.Client shared by every handle with the same credentials.
type conn struct {
	key    string
	addr   string
	cli    *mongo.Client
	refs   int
	cancel context.CancelFunc
}

var (
	connsMu sync.Mutex
	conns   = map[string]*conn{}
)

// URI renders dial info as a mongodb:// connection string.
func (d DialInfo) URI() string {
	uri := &url.URL{
		Scheme: "mongodb",
		Host:   d.Addr,
		Path:   "/" + d.DBName,
	}
	if d.User != "" || d.Pwd != "" {
		uri.User = url.UserPassword(d.User, d.Pwd)
	}
	if d.AuthDB != "" {
		q := url.Values{}
		q.Set("authSource", d.AuthDB)
		uri.RawQuery = q.Encode()
	}

	return uri.String()
}

// connKey identifies a client by host and credentials, not by database name.
func (d DialInfo) connKey() string {
	return fmt.Sprintf("%s|%s|%s|%s", d.Addr, d.User, d.Pwd, d.AuthDB)
}

// NewDB returns a handle on dialInfo.DBName, dialing a new client only when
// no client for the same host and credentials is open yet.
func NewDB(ctx context.Context, dialInfo DialInfo) (DB, error) {
	if dialInfo.Addr == "" {
		return nil, errors.New("mongo addr is empty")
	}
	if dialInfo.DBName == "" {
		return nil, errors.New("mongo db name is empty")
	}

	key := dialInfo.connKey()

	connsMu.Lock()
	defer connsMu.Unlock()

	if c, ok := conns[key]; ok {
		c.refs++
		return &handle{conn: c, dbName: dialInfo.DBName}, nil
	}

	log.Logger.Info("connect to mongodb",
		zap.String("addr", dialInfo.Addr),
		zap.String("db", dialInfo.DBName))
	cli, err := dial(ctx, dialInfo.URI())
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", dialInfo.Addr)
	}

	c := &conn{key: key, addr: dialInfo.Addr, cli: cli, refs: 1}
	c.watch()
	conns[key] = c

	return &handle{conn: c, dbName: dialInfo.DBName}, nil
}

func dial(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(defaultTimeout).
		SetServerSelectionTimeout(defaultTimeout).
		SetRetryReads(true).
		SetRetryWrites(true).
		SetMaxPoolSize(100).
		SetMaxConnIdleTime(5 * time.Minute)

	cli, err := connectMongo(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}

	// fail at startup rather than on the first request
	if err = pingMongo(ctx, cli); err != nil {
		_ = disconnectMongo(context.Background(), cli)
		return nil, errors.Wrap(err, "ping")
	}

	return cli, nil
}

// watch logs unreachable servers. The driver reconnects on its own.
func (c *conn) watch() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go func() {
		ticker := time.NewTicker(healthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
			err := pingMongo(pingCtx, c.cli)
			pingCancel()
			if err != nil && ctx.Err() == nil {
				log.Logger.Warn("mongodb ping failed", zap.Error(err), zap.String("addr", c.addr))
			}
		}
	}()
}

// CurrentDB returns the database named in the dial info.
func (h *handle) CurrentDB() *mongo.Database {
	return h.conn.cli.Database(h.dbName)
}

// GetCol returns a collection of the current database.
func (h *handle) GetCol(colName string) *mongo.Collection {
	return h.CurrentDB().Collection(colName)
}

// Close releases the handle. Closing twice is a no-op.
func (h *handle) Close(ctx context.Context) (err error) {
	h.once.Do(func() {
		connsMu.Lock()
		h.conn.refs--
		last := h.conn.refs == 0
		if last {
			delete(conns, h.conn.key)
		}
		connsMu.Unlock()

		if !last {
			return
		}

		h.conn.cancel()
		closeCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
		if err = disconnectMongo(closeCtx, h.conn.cli); err != nil {
			err = errors.Wrap(err, "disconnect")
		}
	})

	return err
}
