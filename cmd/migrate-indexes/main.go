// Command migrate-indexes creates, drops or lists the MongoDB indexes
// internal/repository/mongodb/indexes.go declares for this platform's
// collections.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coreledger/platform/internal/ioc"
	"github.com/coreledger/platform/internal/repository/mongodb"
)

func main() {
	drop := flag.Bool("drop", false, "drop all indexes before creating")
	list := flag.String("list", "", "list indexes for a specific collection")
	flag.Parse()

	cfg, err := ioc.EnvironmentConfig()
	if err != nil {
		log.Fatal("failed to load environment config:", err)
	}
	if cfg.Mongo.URI == "" {
		log.Fatal("MONGO_URI (or MONGODB_HOST/PORT/DATABASE) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatal("failed to connect to MongoDB:", err)
	}
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			log.Fatal("failed to disconnect from MongoDB:", err)
		}
	}()

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("failed to ping MongoDB:", err)
	}
	fmt.Printf("connected to MongoDB (database: %s)\n\n", cfg.Mongo.Database)

	if *list != "" {
		indexes, err := mongodb.ListIndexes(ctx, client, cfg.Mongo.Database, *list)
		if err != nil {
			log.Fatal("failed to list indexes:", err)
		}
		fmt.Printf("indexes for collection '%s':\n", *list)
		for i, idx := range indexes {
			fmt.Printf("%d. %v  keys=%v\n", i+1, idx["name"], idx["key"])
		}
		return
	}

	if *drop {
		slog.InfoContext(ctx, "dropping existing indexes")
		if err := mongodb.DropAllIndexes(ctx, client, cfg.Mongo.Database); err != nil {
			log.Fatal("failed to drop indexes:", err)
		}
	}

	slog.InfoContext(ctx, "creating indexes")
	if err := mongodb.CreateIndexes(ctx, client, cfg.Mongo.Database); err != nil {
		log.Fatal("failed to create indexes:", err)
	}
	fmt.Println("index migration completed successfully")
}
