// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/valkey-io/valkey-go"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// Services is allocated in ConnectDB and filled in by Startup so that
// BuildHandler and Shutdown, which receive DBDeps by value, see the same
// runtime objects.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	Valkey        valkey.Client // nil when no valkey_addr is configured

	Services *Services
}
